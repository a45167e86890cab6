// Package config loads the dozeprobe configuration: a YAML file, then
// DOZEPROBE_* environment overrides, then defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/common/lock"
	mysqlJournal "github.com/devlibx/gox-dozeprobe/pkg/journal/mysql"
	"github.com/devlibx/gox-dozeprobe/pkg/probe"
	"github.com/devlibx/gox-dozeprobe/pkg/timer"
	"gopkg.in/yaml.v3"
)

const (
	JournalMemory = "memory"
	JournalMySQL  = "mysql"
)

const (
	EnvProbeURL       = "DOZEPROBE_PROBE_URL"
	EnvInterface      = "DOZEPROBE_INTERFACE"
	EnvAPIListen      = "DOZEPROBE_API_LISTEN"
	EnvJournalDriver  = "DOZEPROBE_JOURNAL_DRIVER"
	EnvAssumeExempt   = "DOZEPROBE_ASSUME_EXEMPT"
	EnvDebug          = "DOZEPROBE_DEBUG"
	EnvMySQLHost      = "DOZEPROBE_MYSQL_HOST"
	EnvMySQLPort      = "DOZEPROBE_MYSQL_PORT"
	EnvMySQLUser      = "DOZEPROBE_MYSQL_USER"
	EnvMySQLPassword  = "DOZEPROBE_MYSQL_PASSWORD"
	EnvMySQLDatabase  = "DOZEPROBE_MYSQL_DB"
	EnvTimerInterval  = "DOZEPROBE_TIMER_INTERVAL"
	EnvChunkInterval  = "DOZEPROBE_CHUNK_INTERVAL"
	EnvTargetDuration = "DOZEPROBE_TARGET_DURATION"
)

type Config struct {
	Probe   probe.Config  `yaml:"probe"`
	Timer   TimerConfig   `yaml:"timer"`
	Hold    HoldConfig    `yaml:"hold"`
	API     APIConfig     `yaml:"api"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

type TimerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type HoldConfig struct {
	CPUTag     string `yaml:"cpu_tag"`
	NetworkTag string `yaml:"network_tag"`

	// Interface whose power save mode is switched off. Defaults to the probe
	// interface.
	Interface string `yaml:"interface"`

	// AssumeExempt skips the power-profiles-daemon check.
	AssumeExempt bool `yaml:"assume_exempt"`
}

type APIConfig struct {
	// Listen is the address of the HTTP control plane. Empty disables it.
	Listen string `yaml:"listen"`
}

type JournalConfig struct {
	Driver string                   `yaml:"driver"`
	MySQL  mysqlJournal.MySqlConfig `yaml:"mysql"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

func (c *Config) SetupDefault() {
	c.Probe.SetupDefault()
	if c.Timer.Interval <= 0 {
		c.Timer.Interval = timer.DefaultInterval
	}
	if c.Hold.CPUTag == "" {
		c.Hold.CPUTag = lock.KeyCPU
	}
	if c.Hold.NetworkTag == "" {
		c.Hold.NetworkTag = lock.KeyNetwork
	}
	if c.Hold.Interface == "" {
		c.Hold.Interface = c.Probe.Interface
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = JournalMemory
	}
	if c.Journal.Driver == JournalMySQL {
		c.Journal.MySQL.SetupDefault()
	}
}

func (c *Config) Validate() error {
	if err := c.Probe.Validate(); err != nil {
		return errors.Wrap(err, "invalid probe config")
	}
	if c.Hold.CPUTag == c.Hold.NetworkTag {
		return errors.New("hold tags must differ")
	}
	switch c.Journal.Driver {
	case JournalMemory:
	case JournalMySQL:
		if c.Journal.MySQL.Database == "" {
			return errors.New("journal.mysql.database is required for the mysql journal")
		}
	default:
		return errors.New("unknown journal driver: " + c.Journal.Driver)
	}
	return nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.SetupDefault()
	return c
}

// Load reads path (skipped when empty), applies environment overrides, fills
// defaults and validates the result.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file %s", path)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.SetupDefault()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	c.Probe.URL = envOrDefault(EnvProbeURL, c.Probe.URL)
	c.Probe.Interface = envOrDefault(EnvInterface, c.Probe.Interface)
	c.API.Listen = envOrDefault(EnvAPIListen, c.API.Listen)
	c.Journal.Driver = envOrDefault(EnvJournalDriver, c.Journal.Driver)
	c.Journal.MySQL.Host = envOrDefault(EnvMySQLHost, c.Journal.MySQL.Host)
	c.Journal.MySQL.User = envOrDefault(EnvMySQLUser, c.Journal.MySQL.User)
	c.Journal.MySQL.Password = envOrDefault(EnvMySQLPassword, c.Journal.MySQL.Password)
	c.Journal.MySQL.Database = envOrDefault(EnvMySQLDatabase, c.Journal.MySQL.Database)

	var err error
	if c.Journal.MySQL.Port, err = intEnvOrDefault(EnvMySQLPort, c.Journal.MySQL.Port); err != nil {
		return err
	}
	if c.Hold.AssumeExempt, err = boolEnvOrDefault(EnvAssumeExempt, c.Hold.AssumeExempt); err != nil {
		return err
	}
	if c.Log.Debug, err = boolEnvOrDefault(EnvDebug, c.Log.Debug); err != nil {
		return err
	}
	if c.Timer.Interval, err = durationEnvOrDefault(EnvTimerInterval, c.Timer.Interval); err != nil {
		return err
	}
	if c.Probe.ChunkInterval, err = durationEnvOrDefault(EnvChunkInterval, c.Probe.ChunkInterval); err != nil {
		return err
	}
	if c.Probe.TargetDuration, err = durationEnvOrDefault(EnvTargetDuration, c.Probe.TargetDuration); err != nil {
		return err
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnvOrDefault(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, errors.Wrap(err, "bad value for %s", key)
	}
	return n, nil
}

func boolEnvOrDefault(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, errors.Wrap(err, "bad value for %s", key)
	}
	return b, nil
}

func durationEnvOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, errors.Wrap(err, "bad value for %s", key)
	}
	return d, nil
}

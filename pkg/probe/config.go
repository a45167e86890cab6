package probe

import (
	"time"

	"github.com/devlibx/gox-base/v2/errors"
)

const (
	DefaultURL            = "http://aroth.no-ip.org/10MB.jpg"
	DefaultFileSize       = 1024 * 1024 * 10
	DefaultTargetDuration = 10 * time.Minute
	DefaultTimeout        = 10 * time.Second
	DefaultChunkInterval  = time.Second
	DefaultInterface      = "wlan0"
)

// Config controls one probe run.
type Config struct {
	// URL of a large resource to download slowly.
	URL string `yaml:"url"`

	// FileSize and TargetDuration set the read rate: the download of FileSize
	// bytes should take about TargetDuration at one chunk per ChunkInterval.
	FileSize       int64         `yaml:"file_size"`
	TargetDuration time.Duration `yaml:"target_duration"`
	ChunkInterval  time.Duration `yaml:"chunk_interval"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`

	// Interface whose WiFi state is checked after every chunk.
	Interface string `yaml:"interface"`
}

func (c *Config) SetupDefault() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.FileSize <= 0 {
		c.FileSize = DefaultFileSize
	}
	if c.TargetDuration <= 0 {
		c.TargetDuration = DefaultTargetDuration
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = DefaultChunkInterval
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultTimeout
	}
	if c.Interface == "" {
		c.Interface = DefaultInterface
	}
}

// ChunkSize is the number of bytes read per chunk, FileSize spread over the
// seconds of TargetDuration. 10 MiB over ten minutes is 17476 bytes.
func (c Config) ChunkSize() int {
	seconds := int64(c.TargetDuration / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	size := c.FileSize / seconds
	if size <= 0 {
		size = 1
	}
	return int(size)
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("probe url must not be empty")
	}
	if c.Interface == "" {
		return errors.New("probe interface must not be empty")
	}
	if c.ReadTimeout <= 0 || c.ConnectTimeout <= 0 {
		return errors.New("probe timeouts must be > 0")
	}
	return nil
}

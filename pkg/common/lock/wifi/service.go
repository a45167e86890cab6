// Package wifiLock implements the network keep-alive hold. While held, power
// save is switched off on the wireless interface so the radio stays in its
// high performance mode; release puts back whatever mode was found.
package wifiLock

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/common/lock"
	"go.uber.org/zap"
)

// Runner runs iw. Swapped out in tests.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

type iwRunner struct{}

// NewIwRunner returns a Runner that executes the iw binary from PATH.
func NewIwRunner() Runner {
	return iwRunner{}
}

func (iwRunner) Run(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "iw", args...).CombinedOutput()
	if err != nil {
		return string(out), errors.Wrap(err, "iw %s failed: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

type service struct {
	gox.CrossFunction
	logger *zap.Logger
	runner Runner
	iface  string

	mutex    sync.Mutex
	held     bool
	owner    string
	previous string
	epoch    int64
}

func NewWifiLockService(cf gox.CrossFunction, logger *zap.Logger, runner Runner, iface string) lock.Locker {
	return &service{
		CrossFunction: cf,
		logger:        logger.Named("wifi"),
		runner:        runner,
		iface:         iface,
	}
}

func (s *service) Acquire(ctx context.Context, request *lock.AcquireRequest) (*lock.AcquireResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.held {
		return &lock.AcquireResponse{OwnerID: s.owner, Acquired: true, Epoch: s.epoch}, nil
	}

	out, err := s.runner.Run(ctx, "dev", s.iface, "get", "power_save")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read power save mode of %s", s.iface)
	}
	previous, err := ParsePowerSave(out)
	if err != nil {
		return nil, err
	}

	if previous != "off" {
		if _, err := s.runner.Run(ctx, "dev", s.iface, "set", "power_save", "off"); err != nil {
			return nil, errors.Wrap(err, "failed to disable power save on %s", s.iface)
		}
	}

	s.held = true
	s.owner = request.OwnerID
	s.previous = previous
	s.epoch++
	s.logger.Info("network keep-alive hold acquired", zap.String("interface", s.iface), zap.String("previous", previous), zap.Int64("epoch", s.epoch))
	return &lock.AcquireResponse{OwnerID: request.OwnerID, Acquired: true, Epoch: s.epoch}, nil
}

func (s *service) Release(ctx context.Context, request *lock.ReleaseRequest) (*lock.ReleaseResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.held {
		return &lock.ReleaseResponse{Released: false}, nil
	}
	s.held = false
	s.owner = ""

	if s.previous != "off" {
		if _, err := s.runner.Run(ctx, "dev", s.iface, "set", "power_save", s.previous); err != nil {
			return nil, errors.Wrap(err, "failed to restore power save %s on %s", s.previous, s.iface)
		}
	}
	s.logger.Info("network keep-alive hold released", zap.String("interface", s.iface), zap.String("restored", s.previous))
	return &lock.ReleaseResponse{Released: true}, nil
}

// ParsePowerSave reads "Power save: on|off" as printed by iw.
func ParsePowerSave(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "power save") {
			continue
		}
		switch v = strings.ToLower(strings.TrimSpace(v)); v {
		case "on", "off":
			return v, nil
		}
		return "", errors.New("unexpected power save mode: " + v)
	}
	return "", errors.New("power save mode not found in iw output")
}

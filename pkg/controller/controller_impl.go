package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/common/lock"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
	"github.com/devlibx/gox-dozeprobe/pkg/journal"
	"github.com/devlibx/gox-dozeprobe/pkg/platform"
	"github.com/devlibx/gox-dozeprobe/pkg/probe"
	"github.com/devlibx/gox-dozeprobe/pkg/timer"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// task is the probe goroutine of one acquire cycle.
type task struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

type controllerImpl struct {
	gox.CrossFunction
	logger    *zap.Logger
	config    Config
	cpu       lock.Locker
	network   lock.Locker
	policy    platform.PowerPolicy
	newRunner RunnerFactory
	status    display.StatusSink
	window    *timer.Window
	journal   journal.Store

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// mutex serialises Acquire, Release and Close and guards the fields below.
	mutex     sync.Mutex
	state     LockState
	sessionID string
	current   *task
	closed    bool

	resultMutex sync.RWMutex
	lastResult  probe.Result
	hasResult   bool
}

// Params are the collaborators of a controller.
type Params struct {
	Config    Config
	CPU       lock.Locker
	Network   lock.Locker
	Policy    platform.PowerPolicy
	NewRunner RunnerFactory
	Status    display.StatusSink
	Window    *timer.Window
	Journal   journal.Store
}

func NewController(cf gox.CrossFunction, logger *zap.Logger, params Params) Controller {
	if params.Config.CPUTag == "" {
		params.Config.CPUTag = lock.KeyCPU
	}
	if params.Config.NetworkTag == "" {
		params.Config.NetworkTag = lock.KeyNetwork
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &controllerImpl{
		CrossFunction: cf,
		logger:        logger.Named("controller"),
		config:        params.Config,
		cpu:           params.CPU,
		network:       params.Network,
		policy:        params.Policy,
		newRunner:     params.NewRunner,
		status:        params.Status,
		window:        params.Window,
		journal:       params.Journal,
		baseCtx:       baseCtx,
		baseCancel:    baseCancel,
	}
}

func (c *controllerImpl) Acquire(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return ErrClosed
	}

	exempt, err := c.policy.IsExempt(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read power saving exemption")
	}
	if !exempt {
		if err := c.policy.RequestExemption(ctx); err != nil {
			c.logger.Warn("failed to request power saving exemption", zap.Error(err))
		}
		c.status.SetStatus(MessagePermissionRequired, display.Error)
		return ErrPermissionRequired
	}

	if c.state == Held {
		c.logger.Debug("acquire while held", zap.String("session", c.sessionID))
		c.status.SetStatus(MessageAcquired, display.Info)
		return nil
	}

	sessionID := uuid.NewString()
	if err := c.acquireHolds(ctx, sessionID); err != nil {
		return err
	}

	c.stopProbe()

	now := c.Now()
	c.state = Held
	c.sessionID = sessionID
	c.window.Start(now)
	if err := c.journal.StartSession(ctx, sessionID, now); err != nil {
		c.logger.Warn("failed to journal session start", zap.String("session", sessionID), zap.Error(err))
	}
	c.logger.Info("holds acquired", zap.String("session", sessionID))

	// Status goes out before the probe starts so a fast failure lands after it.
	c.status.SetStatus(MessageAcquired, display.Info)
	c.startProbe(sessionID)
	return nil
}

// acquireHolds takes the CPU hold and then the network hold. Both are held or
// neither is.
func (c *controllerImpl) acquireHolds(ctx context.Context, sessionID string) error {
	if err := c.acquireOne(ctx, c.cpu, c.config.CPUTag, sessionID); err != nil {
		return err
	}
	if err := c.acquireOne(ctx, c.network, c.config.NetworkTag, sessionID); err != nil {
		if rErr := c.releaseOne(ctx, c.cpu, c.config.CPUTag, sessionID); rErr != nil {
			c.logger.Error("failed to roll back cpu hold", zap.Error(rErr))
		}
		return err
	}
	return nil
}

func (c *controllerImpl) acquireOne(ctx context.Context, locker lock.Locker, tag string, sessionID string) error {
	response, err := locker.Acquire(ctx, &lock.AcquireRequest{LockKey: tag, OwnerID: sessionID})
	if err != nil {
		return errors.Wrap(err, "failed to acquire hold: tag=%s", tag)
	}
	if !response.Acquired {
		return fmt.Errorf("hold not acquired: tag=%s owner=%s", tag, response.OwnerID)
	}
	c.logger.Debug("hold acquired", zap.String("tag", tag), zap.Int64("epoch", response.Epoch))
	return nil
}

func (c *controllerImpl) releaseOne(ctx context.Context, locker lock.Locker, tag string, sessionID string) error {
	response, err := locker.Release(ctx, &lock.ReleaseRequest{LockKey: tag, OwnerID: sessionID})
	if err != nil {
		return errors.Wrap(err, "failed to release hold: tag=%s", tag)
	}
	if !response.Released {
		c.logger.Warn("hold was not held at release", zap.String("tag", tag))
	}
	return nil
}

func (c *controllerImpl) Release(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.release(ctx)
}

func (c *controllerImpl) release(ctx context.Context) error {
	if c.state != Held {
		return nil
	}

	c.stopProbe()

	err := multierr.Combine(
		c.releaseOne(ctx, c.cpu, c.config.CPUTag, c.sessionID),
		c.releaseOne(ctx, c.network, c.config.NetworkTag, c.sessionID),
	)

	now := c.Now()
	c.state = Released
	c.window.Freeze(now)
	c.status.SetStatus(MessageReleased, display.Neutral)
	if jErr := c.journal.EndSession(ctx, c.sessionID, now); jErr != nil {
		c.logger.Warn("failed to journal session end", zap.String("session", c.sessionID), zap.Error(jErr))
	}
	c.logger.Info("holds released", zap.String("session", c.sessionID), zap.Error(err))
	return err
}

func (c *controllerImpl) Close(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.release(ctx)
	c.stopProbe()
	c.baseCancel()
	return err
}

func (c *controllerImpl) Snapshot() Snapshot {
	c.mutex.Lock()
	s := Snapshot{
		State:        c.state,
		SessionID:    c.sessionID,
		Elapsed:      c.window.Elapsed(c.Now()),
		ProbeRunning: c.current != nil && !isDone(c.current.done),
	}
	c.mutex.Unlock()

	c.resultMutex.RLock()
	defer c.resultMutex.RUnlock()
	s.Probe = c.lastResult
	s.HasProbe = c.hasResult
	return s
}

// stopProbe cancels the running probe task, if any, and waits for it to exit.
// Caller holds mutex.
func (c *controllerImpl) stopProbe() {
	if c.current == nil {
		return
	}
	c.current.cancel()
	<-c.current.done
	c.current = nil
}

// startProbe runs a new probe for sessionID. Caller holds mutex.
func (c *controllerImpl) startProbe(sessionID string) {
	ctx, cancel := context.WithCancel(c.baseCtx)
	t := &task{sessionID: sessionID, cancel: cancel, done: make(chan struct{})}
	c.current = t

	c.resultMutex.Lock()
	c.lastResult = probe.Result{}
	c.hasResult = false
	c.resultMutex.Unlock()

	runner := c.newRunner(c.recordResult)
	go func() {
		defer close(t.done)
		defer cancel()
		c.onOutcome(ctx, t, runner.Run(ctx))
	}()
}

func (c *controllerImpl) recordResult(r probe.Result) {
	c.resultMutex.Lock()
	defer c.resultMutex.Unlock()
	c.lastResult = r
	c.hasResult = true
}

// onOutcome reports how a probe run ended. It runs on the probe goroutine and
// must not take mutex: Release holds it while joining this goroutine.
func (c *controllerImpl) onOutcome(ctx context.Context, t *task, result probe.Result) {
	c.recordResult(result)

	switch result.Status {
	case probe.Failed:
		c.window.Freeze(c.Now())
		c.status.AppendStatus(PowerSavingPrefix+result.Describe(), display.Error)
	case probe.Completed:
		c.status.AppendStatus(result.Describe(), display.Info)
	default:
		c.logger.Info("probe stopped", zap.String("session", t.sessionID), zap.Stringer("status", result.Status),
			zap.Int64("bytesTransferred", result.BytesTransferred))
	}

	outcome := journal.ProbeOutcome{
		Outcome:          result.Status.String(),
		Reason:           result.Reason,
		BytesTransferred: result.BytesTransferred,
		At:               result.At,
	}
	if result.Kind != probe.KindNone {
		outcome.Kind = result.Kind.String()
	}
	if err := c.journal.RecordResult(context.WithoutCancel(ctx), t.sessionID, outcome); err != nil {
		c.logger.Warn("failed to journal probe result", zap.String("session", t.sessionID), zap.Error(err))
	}
}

func isDone(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

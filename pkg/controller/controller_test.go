package controller

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/common/lock"
	memoryLock "github.com/devlibx/gox-dozeprobe/pkg/common/lock/memory"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
	"github.com/devlibx/gox-dozeprobe/pkg/journal"
	memoryJournal "github.com/devlibx/gox-dozeprobe/pkg/journal/memory"
	"github.com/devlibx/gox-dozeprobe/pkg/platform/fake"
	"github.com/devlibx/gox-dozeprobe/pkg/probe"
	"github.com/devlibx/gox-dozeprobe/pkg/timer"
	"github.com/devlibx/gox-dozeprobe/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type event struct {
	op       string
	text     string
	severity display.Severity
}

// eventSink records every status call in order.
type eventSink struct {
	mutex  sync.Mutex
	events []event
}

func (s *eventSink) SetStatus(text string, severity display.Severity) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, event{op: "set", text: text, severity: severity})
}

func (s *eventSink) AppendStatus(text string, severity display.Severity) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, event{op: "append", text: text, severity: severity})
}

func (s *eventSink) Events() []event {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]event(nil), s.events...)
}

func (s *eventSink) count(op string, severity display.Severity) int {
	n := 0
	for _, e := range s.Events() {
		if e.op == op && e.severity == severity {
			n++
		}
	}
	return n
}

// blockingRunners hands out runners that run until cancelled and tracks how
// many are alive at once.
type blockingRunners struct {
	started *atomic.Int32
	stopped *atomic.Int32
	alive   *atomic.Int32
	maxLive *atomic.Int32
}

func newBlockingRunners() *blockingRunners {
	return &blockingRunners{
		started: atomic.NewInt32(0),
		stopped: atomic.NewInt32(0),
		alive:   atomic.NewInt32(0),
		maxLive: atomic.NewInt32(0),
	}
}

func (b *blockingRunners) Factory(onProgress func(probe.Result)) Runner {
	return b
}

func (b *blockingRunners) Run(ctx context.Context) probe.Result {
	b.started.Inc()
	live := b.alive.Inc()
	for {
		peak := b.maxLive.Load()
		if live <= peak || b.maxLive.CAS(peak, live) {
			break
		}
	}
	<-ctx.Done()
	b.alive.Dec()
	b.stopped.Inc()
	return probe.Result{Status: probe.Cancelled}
}

type fixedRunner struct {
	result probe.Result
}

func (f fixedRunner) Run(ctx context.Context) probe.Result {
	return f.result
}

type failingLocker struct{}

func (failingLocker) Acquire(ctx context.Context, request *lock.AcquireRequest) (*lock.AcquireResponse, error) {
	return nil, errors.New("no hold for you")
}

func (failingLocker) Release(ctx context.Context, request *lock.ReleaseRequest) (*lock.ReleaseResponse, error) {
	return &lock.ReleaseResponse{Released: false}, nil
}

type ControllerTestSuite struct {
	suite.Suite
	cf      *util.MockCrossFunction
	cpu     memoryLock.Locker
	network memoryLock.Locker
	policy  *fake.Policy
	sink    *eventSink
	window  *timer.Window
	journal journal.Store
	runners *blockingRunners
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (s *ControllerTestSuite) SetupTest() {
	s.cf = util.NewMockCrossFunction(time.Date(2025, 6, 23, 0, 23, 56, 0, time.UTC))
	s.cpu = memoryLock.NewLocker(s.cf)
	s.network = memoryLock.NewLocker(s.cf)
	s.policy = fake.NewPolicy(true)
	s.sink = &eventSink{}
	s.window = timer.NewWindow(s.cf.Now())
	s.journal = memoryJournal.NewStore()
	s.runners = newBlockingRunners()
}

func (s *ControllerTestSuite) newController(factory RunnerFactory) Controller {
	return NewController(s.cf, zap.NewNop(), Params{
		CPU:       s.cpu,
		Network:   s.network,
		Policy:    s.policy,
		NewRunner: factory,
		Status:    s.sink,
		Window:    s.window,
		Journal:   s.journal,
	})
}

func (s *ControllerTestSuite) waitProbeDone(c Controller) Snapshot {
	var snap Snapshot
	require.Eventually(s.T(), func() bool {
		snap = c.Snapshot()
		return snap.HasProbe && !snap.ProbeRunning
	}, 5*time.Second, 5*time.Millisecond)
	return snap
}

func (s *ControllerTestSuite) TestAcquire_NotExempt() {
	s.policy.SetExempt(false)
	c := s.newController(s.runners.Factory)

	for i := 1; i <= 3; i++ {
		err := c.Acquire(context.Background())
		assert.ErrorIs(s.T(), err, ErrPermissionRequired)
		assert.Equal(s.T(), i, s.policy.Requests())
		assert.Len(s.T(), s.sink.Events(), i, "one instructional message per call")
	}

	assert.Equal(s.T(), 3, s.sink.count("set", display.Error))
	assert.Equal(s.T(), MessagePermissionRequired, s.sink.Events()[0].text)
	assert.Empty(s.T(), s.cpu.History())
	assert.Empty(s.T(), s.network.History())
	assert.Equal(s.T(), int32(0), s.runners.started.Load())
	assert.Equal(s.T(), Released, c.Snapshot().State)
}

func (s *ControllerTestSuite) TestAcquire_TakesBothHoldsAndStartsOneProbe() {
	c := s.newController(s.runners.Factory)
	defer c.Close(context.Background())

	require.NoError(s.T(), c.Acquire(context.Background()))

	snap := c.Snapshot()
	assert.Equal(s.T(), Held, snap.State)
	assert.NotEmpty(s.T(), snap.SessionID)
	assert.True(s.T(), s.cpu.IsHeld(lock.KeyCPU))
	assert.True(s.T(), s.network.IsHeld(lock.KeyNetwork))
	assert.Equal(s.T(), []string{"acquire:" + lock.KeyCPU}, s.cpu.History())
	assert.True(s.T(), s.window.Running())
	assert.Equal(s.T(), []event{{op: "set", text: MessageAcquired, severity: display.Info}}, s.sink.Events())
	require.Eventually(s.T(), func() bool { return s.runners.started.Load() == 1 }, time.Second, time.Millisecond)
}

func (s *ControllerTestSuite) TestAcquire_WhileHeldIsIdempotent() {
	c := s.newController(s.runners.Factory)
	defer c.Close(context.Background())

	require.NoError(s.T(), c.Acquire(context.Background()))
	first := c.Snapshot().SessionID
	s.cf.AdvanceTime(5 * time.Second)

	require.NoError(s.T(), c.Acquire(context.Background()))
	s.cf.AdvanceTime(2 * time.Second)

	snap := c.Snapshot()
	assert.Equal(s.T(), Held, snap.State)
	assert.Equal(s.T(), first, snap.SessionID)
	assert.Equal(s.T(), 7*time.Second, snap.Elapsed, "window is not reset")
	assert.Equal(s.T(), 2, s.sink.count("set", display.Info))
	assert.Len(s.T(), s.cpu.History(), 1)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(s.T(), int32(1), s.runners.started.Load())
}

func (s *ControllerTestSuite) TestRelease_NotHeldIsNoop() {
	c := s.newController(s.runners.Factory)

	assert.NoError(s.T(), c.Release(context.Background()))
	assert.Empty(s.T(), s.sink.Events())
	assert.Empty(s.T(), s.cpu.History())
	assert.Equal(s.T(), Released, c.Snapshot().State)
}

func (s *ControllerTestSuite) TestRelease_StopsProbeAndFreezesWindow() {
	c := s.newController(s.runners.Factory)

	require.NoError(s.T(), c.Acquire(context.Background()))
	require.Eventually(s.T(), func() bool { return s.runners.started.Load() == 1 }, time.Second, time.Millisecond)
	s.cf.AdvanceTime(125 * time.Second)

	require.NoError(s.T(), c.Release(context.Background()))

	// joined before Release returned
	assert.Equal(s.T(), int32(1), s.runners.stopped.Load())
	assert.False(s.T(), s.cpu.IsHeld(lock.KeyCPU))
	assert.False(s.T(), s.network.IsHeld(lock.KeyNetwork))
	assert.False(s.T(), s.window.Running())

	events := s.sink.Events()
	assert.Equal(s.T(), event{op: "set", text: MessageReleased, severity: display.Neutral}, events[len(events)-1])
	assert.Equal(s.T(), 0, s.sink.count("append", display.Error), "cancellation is not reported")

	s.cf.AdvanceTime(time.Minute)
	snap := c.Snapshot()
	assert.Equal(s.T(), Released, snap.State)
	assert.False(s.T(), snap.ProbeRunning)
	assert.Equal(s.T(), "2:05", timer.Format(snap.Elapsed))
}

func (s *ControllerTestSuite) TestAcquireThenRelease_WindowFrozenNearZero() {
	c := s.newController(s.runners.Factory)

	require.NoError(s.T(), c.Acquire(context.Background()))
	require.NoError(s.T(), c.Release(context.Background()))

	s.cf.AdvanceTime(time.Hour)
	snap := c.Snapshot()
	assert.Equal(s.T(), Released, snap.State)
	assert.False(s.T(), s.window.Running())
	assert.Equal(s.T(), "0:00", timer.Format(snap.Elapsed))
}

func (s *ControllerTestSuite) TestReacquire_JoinsPreviousProbe() {
	c := s.newController(s.runners.Factory)
	defer c.Close(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(s.T(), c.Acquire(context.Background()))
		require.Eventually(s.T(), func() bool { return s.runners.started.Load() == int32(i+1) }, time.Second, time.Millisecond)
		require.NoError(s.T(), c.Release(context.Background()))
	}
	require.NoError(s.T(), c.Acquire(context.Background()))
	require.Eventually(s.T(), func() bool { return s.runners.started.Load() == 4 }, time.Second, time.Millisecond)

	assert.Equal(s.T(), int32(1), s.runners.maxLive.Load())
	assert.Equal(s.T(), int32(3), s.runners.stopped.Load())
}

func (s *ControllerTestSuite) TestAcquire_NetworkHoldFailureRollsBackCpuHold() {
	c := NewController(s.cf, zap.NewNop(), Params{
		CPU:       s.cpu,
		Network:   failingLocker{},
		Policy:    s.policy,
		NewRunner: s.runners.Factory,
		Status:    s.sink,
		Window:    s.window,
		Journal:   s.journal,
	})

	err := c.Acquire(context.Background())
	require.Error(s.T(), err)
	assert.False(s.T(), s.cpu.IsHeld(lock.KeyCPU))
	assert.Equal(s.T(), []string{"acquire:" + lock.KeyCPU, "release:" + lock.KeyCPU}, s.cpu.History())
	assert.Equal(s.T(), Released, c.Snapshot().State)
	assert.False(s.T(), s.window.Running())
	assert.Empty(s.T(), s.sink.Events())
	assert.Equal(s.T(), int32(0), s.runners.started.Load())
}

func (s *ControllerTestSuite) TestProbeCompleted_AppendsInfo() {
	at := s.cf.Now()
	c := s.newController(func(onProgress func(probe.Result)) Runner {
		return fixedRunner{result: probe.Result{Status: probe.Completed, BytesTransferred: 4096, At: at}}
	})
	defer c.Close(context.Background())

	require.NoError(s.T(), c.Acquire(context.Background()))
	snap := s.waitProbeDone(c)

	assert.Equal(s.T(), probe.Completed, snap.Probe.Status)
	assert.Equal(s.T(), 1, s.sink.count("append", display.Info))
	assert.Equal(s.T(), 0, s.sink.count("append", display.Error))
	assert.True(s.T(), s.window.Running(), "a completed download does not stop the clock")
}

func (s *ControllerTestSuite) TestProbeTransportFailure_ReportedLikeConnectivityLoss() {
	c := s.newController(func(onProgress func(probe.Result)) Runner {
		return fixedRunner{result: probe.Result{Status: probe.Failed, Kind: probe.KindTransport, Reason: "connection reset", BytesTransferred: 300}}
	})
	defer c.Close(context.Background())

	require.NoError(s.T(), c.Acquire(context.Background()))
	s.waitProbeDone(c)

	assert.Equal(s.T(), 1, s.sink.count("append", display.Error))
	assert.False(s.T(), s.window.Running())
}

func (s *ControllerTestSuite) TestProbeConnectivityLost_ReportsBytesOnce() {
	const chunk = 100
	const n = 4

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(20*chunk))
		for i := 0; i < 20; i++ {
			if _, err := w.Write(bytes.Repeat([]byte{'z'}, chunk)); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	connectivity := fake.NewConnectivity(n - 1)
	c := s.newController(func(onProgress func(probe.Result)) Runner {
		p := probe.NewProbe(s.cf, zap.NewNop(), probe.Config{
			URL:            srv.URL,
			FileSize:       10 * chunk,
			TargetDuration: 10 * time.Second,
			ChunkInterval:  time.Millisecond,
			ConnectTimeout: time.Second,
			ReadTimeout:    time.Second,
			Interface:      "wlan0",
		}, connectivity)
		p.OnProgress = onProgress
		return p
	})
	defer c.Close(context.Background())

	require.NoError(s.T(), c.Acquire(context.Background()))
	snap := s.waitProbeDone(c)

	assert.Equal(s.T(), probe.Failed, snap.Probe.Status)
	assert.Equal(s.T(), probe.KindConnectivityLost, snap.Probe.Kind)
	assert.Equal(s.T(), int64(n*chunk), snap.Probe.BytesTransferred)
	assert.False(s.T(), s.window.Running())

	var errorAppends []event
	for _, e := range s.sink.Events() {
		if e.op == "append" && e.severity == display.Error {
			errorAppends = append(errorAppends, e)
		}
	}
	require.Len(s.T(), errorAppends, 1)
	assert.True(s.T(), strings.HasPrefix(errorAppends[0].text, PowerSavingPrefix))
	assert.Contains(s.T(), errorAppends[0].text, "bytesTransferred="+strconv.Itoa(n*chunk))
	assert.Contains(s.T(), errorAppends[0].text, probe.ReasonConnectivityLost)
}

func (s *ControllerTestSuite) TestJournal_RecordsCycle() {
	c := s.newController(func(onProgress func(probe.Result)) Runner {
		return fixedRunner{result: probe.Result{Status: probe.Failed, Kind: probe.KindConnectivityLost, Reason: probe.ReasonConnectivityLost, BytesTransferred: 200}}
	})

	require.NoError(s.T(), c.Acquire(context.Background()))
	snap := s.waitProbeDone(c)
	require.NoError(s.T(), c.Release(context.Background()))

	sessions, err := s.journal.List(context.Background(), 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), sessions, 1)
	assert.Equal(s.T(), snap.SessionID, sessions[0].ID)
	assert.Equal(s.T(), "failed", sessions[0].Outcome)
	assert.Equal(s.T(), "connectivity-lost", sessions[0].Kind)
	assert.Equal(s.T(), int64(200), sessions[0].BytesTransferred)
	assert.False(s.T(), sessions[0].EndedAt.IsZero())
}

func (s *ControllerTestSuite) TestClose_ReleasesAndRejectsAcquire() {
	c := s.newController(s.runners.Factory)

	require.NoError(s.T(), c.Acquire(context.Background()))
	require.NoError(s.T(), c.Close(context.Background()))

	assert.False(s.T(), s.cpu.IsHeld(lock.KeyCPU))
	assert.Equal(s.T(), Released, c.Snapshot().State)
	assert.ErrorIs(s.T(), c.Acquire(context.Background()), ErrClosed)
	assert.NoError(s.T(), c.Close(context.Background()))
}

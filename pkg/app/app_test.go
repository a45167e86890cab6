package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devlibx/gox-dozeprobe/pkg/config"
	"github.com/devlibx/gox-dozeprobe/pkg/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type AppTestSuite struct {
	suite.Suite
	app      *fx.App
	graph    Graph
	out      *bytes.Buffer
	download *httptest.Server
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func (s *AppTestSuite) SetupTest() {
	// a download that never ends so the probe keeps running
	s.download = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		_, _ = w.Write(bytes.Repeat([]byte{'d'}, 100))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	cfg := config.Default()
	cfg.Probe.URL = s.download.URL
	cfg.Probe.ChunkInterval = time.Millisecond
	cfg.Timer.Interval = 10 * time.Millisecond

	s.out = &bytes.Buffer{}
	s.app = fx.New(
		Module(cfg, zap.NewNop(), Options{DryRun: true, Headless: true, Out: &syncWriter{buf: s.out}}),
		s.graph.Populate(),
		fx.NopLogger,
	)
	require.NoError(s.T(), s.app.Err())
	require.NoError(s.T(), s.app.Start(context.Background()))
}

func (s *AppTestSuite) TearDownTest() {
	if s.app != nil {
		_ = s.app.Stop(context.Background())
	}
	s.download.Close()
}

func (s *AppTestSuite) TestDryRunGraph() {
	assert.NotNil(s.T(), s.graph.Controller)
	assert.NotNil(s.T(), s.graph.Ticker)
	assert.NotNil(s.T(), s.graph.Server)
	assert.NotNil(s.T(), s.graph.Journal)
	assert.Nil(s.T(), s.graph.Display.TUI)
}

func (s *AppTestSuite) TestAcquireReleaseThroughQueue() {
	ctx := context.Background()
	require.NoError(s.T(), s.graph.Controller.Acquire(ctx))
	assert.Equal(s.T(), controller.Held, s.graph.Controller.Snapshot().State)

	require.Eventually(s.T(), func() bool {
		return s.graph.Display.Recorder.Snapshot().Status == controller.MessageAcquired
	}, time.Second, time.Millisecond)

	require.NoError(s.T(), s.graph.Controller.Release(ctx))
	require.Eventually(s.T(), func() bool {
		return s.graph.Display.Recorder.Snapshot().Status == controller.MessageReleased
	}, time.Second, time.Millisecond)

	// Stop drains the console queue
	require.NoError(s.T(), s.app.Stop(ctx))
	s.app = nil

	lines := strings.Split(strings.TrimSpace(s.out.String()), "\n")
	assert.Equal(s.T(), "[info] "+strings.SplitN(controller.MessageAcquired, "\n", 2)[0], lines[0])
	assert.Contains(s.T(), s.out.String(), "[neutral] "+controller.MessageReleased)
}

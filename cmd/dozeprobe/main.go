package main

import (
	"context"
	stdErrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devlibx/gox-dozeprobe/pkg/app"
	"github.com/devlibx/gox-dozeprobe/pkg/config"
	"github.com/devlibx/gox-dozeprobe/pkg/controller"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
	"github.com/devlibx/gox-dozeprobe/pkg/tui"
	"github.com/devlibx/gox-dozeprobe/pkg/util"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		debug      = flag.Bool("debug", false, "debug logging")
		dryRun     = flag.Bool("dry-run", false, "use in-process holds and a fake platform")
		headless   = flag.Bool("headless", false, "print status lines instead of the interactive screen")
		acquire    = flag.Bool("acquire", false, "acquire the holds at start (headless only)")
	)
	flag.Parse()

	if err := run(*configPath, *debug, *dryRun, *headless, *acquire); err != nil {
		fmt.Fprintln(os.Stderr, "dozeprobe:", err)
		os.Exit(1)
	}
}

func run(configPath string, debug, dryRun, headless, acquire bool) error {
	util.LoadDevEnv()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(debug || cfg.Log.Debug, headless)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var graph app.Graph
	fxApp := fx.New(
		app.Module(cfg, logger, app.Options{DryRun: dryRun, Headless: headless, Out: os.Stdout}),
		graph.Populate(),
		fx.NopLogger,
	)
	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := fxApp.Stop(stopCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return graph.Ticker.Run(gCtx)
	})
	if cfg.API.Listen != "" {
		g.Go(func() error {
			return graph.Server.Run(gCtx)
		})
	}

	if headless {
		graph.Display.Sink.SetStatus(controller.MessageReleased, display.Neutral)
		if acquire {
			if err := graph.Controller.Acquire(ctx); err != nil && !stdErrors.Is(err, controller.ErrPermissionRequired) {
				stop()
				_ = g.Wait()
				return err
			}
		}
		logger.Info("running headless, press Ctrl+C to stop")
		<-gCtx.Done()
	} else {
		uiCtx, cancelUI := context.WithCancel(gCtx)
		defer cancelUI()
		g.Go(func() error {
			// leaving the screen ends the run
			defer stop()
			return tui.Run(uiCtx, tui.NewModel(uiCtx, graph.Controller), graph.Display.TUI)
		})
	}

	err = g.Wait()
	logger.Info("stopping")
	return err
}

// newLogger builds the zap logger. The interactive screen owns stdout, so
// logs go to a file next to the working directory unless running headless.
func newLogger(debug, headless bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if !headless {
		cfg.OutputPaths = []string{"dozeprobe.log"}
		cfg.ErrorOutputPaths = []string{"dozeprobe.log"}
	}
	return cfg.Build()
}

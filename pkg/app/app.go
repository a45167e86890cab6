// Package app builds the dozeprobe object graph with fx.
package app

import (
	"context"
	"io"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/api"
	"github.com/devlibx/gox-dozeprobe/pkg/common/database"
	"github.com/devlibx/gox-dozeprobe/pkg/common/lock"
	logindLock "github.com/devlibx/gox-dozeprobe/pkg/common/lock/logind"
	memoryLock "github.com/devlibx/gox-dozeprobe/pkg/common/lock/memory"
	wifiLock "github.com/devlibx/gox-dozeprobe/pkg/common/lock/wifi"
	"github.com/devlibx/gox-dozeprobe/pkg/config"
	"github.com/devlibx/gox-dozeprobe/pkg/controller"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
	"github.com/devlibx/gox-dozeprobe/pkg/journal"
	memoryJournal "github.com/devlibx/gox-dozeprobe/pkg/journal/memory"
	mysqlJournal "github.com/devlibx/gox-dozeprobe/pkg/journal/mysql"
	"github.com/devlibx/gox-dozeprobe/pkg/platform"
	"github.com/devlibx/gox-dozeprobe/pkg/platform/fake"
	"github.com/devlibx/gox-dozeprobe/pkg/platform/linux"
	"github.com/devlibx/gox-dozeprobe/pkg/probe"
	"github.com/devlibx/gox-dozeprobe/pkg/timer"
	"github.com/devlibx/gox-dozeprobe/pkg/tui"
	"github.com/devlibx/gox-dozeprobe/pkg/util"
	"github.com/godbus/dbus/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Options are the command line switches that change the graph.
type Options struct {
	// DryRun replaces the host collaborators with in-process ones.
	DryRun bool

	// Headless prints to Out instead of running the TUI.
	Headless bool
	Out      io.Writer
}

// Holds are the two platform resources taken on acquire.
type Holds struct {
	CPU     lock.Locker
	Network lock.Locker
}

// Platform is what the controller and the probe ask of the host.
type Platform struct {
	Policy       platform.PowerPolicy
	Connectivity platform.Connectivity
}

// Display is where status and elapsed text go. TUI is nil in headless mode.
type Display struct {
	Sink     display.Sink
	Recorder *display.Recorder
	TUI      *tui.Sink
}

// Graph is what the command needs once the app started.
type Graph struct {
	Controller controller.Controller
	Ticker     *timer.Ticker
	Server     *api.Server
	Display    Display
	Journal    journal.Store
}

// Populate fills g when the app is built.
func (g *Graph) Populate() fx.Option {
	return fx.Populate(&g.Controller, &g.Ticker, &g.Server, &g.Display, &g.Journal)
}

// Module is the full graph for cfg.
func Module(cfg *config.Config, logger *zap.Logger, opts Options) fx.Option {
	return fx.Options(
		fx.Supply(cfg, logger, opts),
		fx.Provide(
			func() gox.CrossFunction { return util.NewCrossFunction() },
			func(cf gox.CrossFunction) *timer.Window { return timer.NewWindow(cf.Now()) },
			NewDisplay,
			NewBuses,
			NewPlatform,
			NewHolds,
			NewJournal,
			NewController,
			NewTicker,
			NewServer,
		),
	)
}

// Buses are the D-Bus connections. Both are nil in dry-run mode and Session is
// nil when there is no desktop session.
type Buses struct {
	System  *dbus.Conn
	Session *dbus.Conn
}

func NewBuses(lc fx.Lifecycle, logger *zap.Logger, opts Options) (Buses, error) {
	if opts.DryRun {
		return Buses{}, nil
	}
	system, err := dbus.ConnectSystemBus()
	if err != nil {
		return Buses{}, errors.Wrap(err, "failed to connect to system bus")
	}
	buses := Buses{System: system}
	if session, err := dbus.ConnectSessionBus(); err != nil {
		logger.Warn("no session bus, exemption requests will only be logged", zap.Error(err))
	} else {
		buses.Session = session
	}
	lc.Append(fx.StopHook(func() error {
		if buses.Session != nil {
			_ = buses.Session.Close()
		}
		return buses.System.Close()
	}))
	return buses, nil
}

func NewDisplay(lc fx.Lifecycle, opts Options) Display {
	recorder := display.NewRecorder()
	if opts.Headless {
		out := opts.Out
		if out == nil {
			out = io.Discard
		}
		queue := display.NewQueue(64)
		lc.Append(fx.StopHook(queue.Close))
		return Display{
			Sink:     display.Queued(queue, display.Tee(recorder, display.NewConsole(out))),
			Recorder: recorder,
		}
	}
	sink := tui.NewSink()
	return Display{
		Sink:     display.Tee(recorder, sink),
		Recorder: recorder,
		TUI:      sink,
	}
}

func NewPlatform(cfg *config.Config, logger *zap.Logger, opts Options, buses Buses) Platform {
	if opts.DryRun {
		return Platform{Policy: fake.NewPolicy(true), Connectivity: fake.AlwaysUp()}
	}
	var policy platform.PowerPolicy = linux.NewPowerProfiles(buses.System, buses.Session, logger)
	if cfg.Hold.AssumeExempt {
		policy = linux.AlwaysExempt{}
	}
	return Platform{Policy: policy, Connectivity: linux.NewNetworkManager(buses.System)}
}

func NewHolds(cf gox.CrossFunction, cfg *config.Config, logger *zap.Logger, opts Options, buses Buses) Holds {
	if opts.DryRun {
		return Holds{CPU: memoryLock.NewLocker(cf), Network: memoryLock.NewLocker(cf)}
	}
	return Holds{
		CPU:     logindLock.NewLogindLockService(cf, logger, logindLock.NewDBusInhibitor(buses.System)),
		Network: wifiLock.NewWifiLockService(cf, logger, wifiLock.NewIwRunner(), cfg.Hold.Interface),
	}
}

func NewJournal(lc fx.Lifecycle, cf gox.CrossFunction, cfg *config.Config) (journal.Store, database.ConnectionHolder, error) {
	if cfg.Journal.Driver != config.JournalMySQL {
		return memoryJournal.NewStore(), database.NewConnectionHolder(nil), nil
	}
	mysqlConfig := cfg.Journal.MySQL
	db, err := mysqlJournal.OpenDB(&mysqlConfig)
	if err != nil {
		return nil, nil, err
	}
	holder := database.NewConnectionHolder(db)
	store, err := mysqlJournal.NewMySQLStoreWithSqlDb(context.Background(), cf, holder.GetJournalDbConnection())
	if err != nil {
		_ = holder.Close()
		return nil, nil, err
	}
	lc.Append(fx.StopHook(holder.Close))
	return store, holder, nil
}

func NewController(lc fx.Lifecycle, cf gox.CrossFunction, cfg *config.Config, logger *zap.Logger,
	holds Holds, plat Platform, disp Display, window *timer.Window, store journal.Store) controller.Controller {
	ctrl := controller.NewController(cf, logger, controller.Params{
		Config:  controller.Config{CPUTag: cfg.Hold.CPUTag, NetworkTag: cfg.Hold.NetworkTag},
		CPU:     holds.CPU,
		Network: holds.Network,
		Policy:  plat.Policy,
		NewRunner: func(onProgress func(probe.Result)) controller.Runner {
			p := probe.NewProbe(cf, logger, cfg.Probe, plat.Connectivity)
			p.OnProgress = onProgress
			return p
		},
		Status:  disp.Sink,
		Window:  window,
		Journal: store,
	})
	lc.Append(fx.StopHook(ctrl.Close))
	return ctrl
}

func NewTicker(cf gox.CrossFunction, cfg *config.Config, window *timer.Window, disp Display) *timer.Ticker {
	return timer.NewTicker(cf, window, disp.Sink, cfg.Timer.Interval)
}

func NewServer(cf gox.CrossFunction, cfg *config.Config, logger *zap.Logger, ctrl controller.Controller,
	disp Display, store journal.Store) *api.Server {
	return api.NewServer(cf, logger, ctrl, disp.Recorder, store, api.ServerOptions{Addr: cfg.API.Listen})
}

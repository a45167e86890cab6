// Package controller owns the hold state of one dozeprobe process: the CPU
// wake hold, the network keep-alive hold, the elapsed-time window and the
// connectivity probe task started for every acquire cycle.
package controller

import (
	"context"
	"time"

	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/probe"
)

// ErrPermissionRequired is returned by Acquire when the process is not exempt
// from power saving. The user has been asked to grant the exemption.
var ErrPermissionRequired = errors.New("power saving exemption required")

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("controller closed")

const (
	MessagePermissionRequired = "Please add this program to the power saving exemption list, then press 'Acquire' again."
	MessageAcquired           = "CPU and network holds have been acquired; please monitor this screen and the logs for power saving. A failed download will show up here as:\n\n" + PowerSavingPrefix + "File download failed at ..."
	MessageReleased           = "No holds held; please press 'Acquire'"

	// PowerSavingPrefix starts the line appended when a probe run fails.
	PowerSavingPrefix = "!!! Power saving detected: "
)

// LockState is Held between a successful Acquire and the next Release.
type LockState int

const (
	Released LockState = iota
	Held
)

func (s LockState) String() string {
	if s == Held {
		return "held"
	}
	return "released"
}

type Controller interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
	Snapshot() Snapshot

	// Close releases the holds if they are held and stops accepting acquires.
	Close(ctx context.Context) error
}

// Snapshot is a consistent read of the controller.
type Snapshot struct {
	State        LockState
	SessionID    string
	Elapsed      time.Duration
	ProbeRunning bool

	// Probe is the latest progress or outcome of the current (or last) session.
	// HasProbe is false until the first probe reported anything.
	Probe    probe.Result
	HasProbe bool
}

// Runner is one probe run. *probe.Probe is the production Runner.
type Runner interface {
	Run(ctx context.Context) probe.Result
}

// RunnerFactory builds the Runner for a new acquire cycle. onProgress must be
// called with every InProgress result.
type RunnerFactory func(onProgress func(probe.Result)) Runner

// Config names the holds taken on acquire.
type Config struct {
	CPUTag     string
	NetworkTag string
}

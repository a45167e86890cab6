package timer

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/atomic"
)

const running int64 = math.MinInt64

// Window is the elapsed "held" duration. Start and stop are unix nanos kept in
// atomics; a reader may observe a start from one cycle with the stop of the
// previous one, which only shows up as a momentary glitch in the display.
type Window struct {
	start *atomic.Int64
	stop  *atomic.Int64
}

// NewWindow returns a window frozen at zero length.
func NewWindow(now time.Time) *Window {
	return &Window{
		start: atomic.NewInt64(now.UnixNano()),
		stop:  atomic.NewInt64(now.UnixNano()),
	}
}

// Start opens a fresh window at now.
func (w *Window) Start(now time.Time) {
	w.start.Store(now.UnixNano())
	w.stop.Store(running)
}

// Freeze closes the window at now. A frozen window stays at its first freeze.
func (w *Window) Freeze(now time.Time) bool {
	return w.stop.CAS(running, now.UnixNano())
}

func (w *Window) Running() bool {
	return w.stop.Load() == running
}

// Elapsed is now-start while running and stop-start once frozen.
func (w *Window) Elapsed(now time.Time) time.Duration {
	start := w.start.Load()
	end := w.stop.Load()
	if end == running {
		end = now.UnixNano()
	}
	return time.Duration(end - start)
}

// Format renders d as minutes:seconds with whole seconds zero padded to two
// digits, 125s is "2:05". Sub-second parts are dropped and negative values
// show as 0:00.
func Format(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

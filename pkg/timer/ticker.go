package timer

import (
	"context"
	"time"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
)

const DefaultInterval = 100 * time.Millisecond

// Ticker pushes the formatted window length to the elapsed display until its
// context ends.
type Ticker struct {
	gox.CrossFunction
	window   *Window
	sink     display.ElapsedSink
	interval time.Duration
}

func NewTicker(cf gox.CrossFunction, window *Window, sink display.ElapsedSink, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{CrossFunction: cf, window: window, sink: sink, interval: interval}
}

// Run blocks until ctx is done. Cancellation is the normal way out and is not
// reported as an error.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		t.sink.SetElapsed(Format(t.window.Elapsed(t.Now())))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

package display

import (
	"fmt"
	"io"
	"sync"
)

// Recorder keeps the latest display state. It is safe for concurrent use so
// the HTTP API can read it while the queue writes it.
type Recorder struct {
	mutex    sync.RWMutex
	status   string
	severity Severity
	elapsed  string
}

// Snapshot is a copy of what a Recorder holds.
type Snapshot struct {
	Status   string
	Severity Severity
	Elapsed  string
}

func NewRecorder() *Recorder {
	return &Recorder{elapsed: "0:00"}
}

func (r *Recorder) SetStatus(text string, severity Severity) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.status = text
	r.severity = severity
}

func (r *Recorder) AppendStatus(text string, severity Severity) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.status = Join(r.status, text)
	r.severity = severity
}

func (r *Recorder) SetElapsed(text string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.elapsed = text
}

func (r *Recorder) Snapshot() Snapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return Snapshot{Status: r.status, Severity: r.severity, Elapsed: r.elapsed}
}

type tee []Sink

// Tee fans every call out to sinks in order.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) SetStatus(text string, severity Severity) {
	for _, s := range t {
		s.SetStatus(text, severity)
	}
}

func (t tee) AppendStatus(text string, severity Severity) {
	for _, s := range t {
		s.AppendStatus(text, severity)
	}
}

func (t tee) SetElapsed(text string) {
	for _, s := range t {
		s.SetElapsed(text)
	}
}

// Console prints status changes as lines. The elapsed time is printed on the
// first change and then on every PrintEvery-th change, which keeps a headless
// log readable with a 100ms timer.
type Console struct {
	w          io.Writer
	PrintEvery int

	lastTime string
	changes  int
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w, PrintEvery: 10}
}

func (c *Console) SetStatus(text string, severity Severity) {
	_, _ = fmt.Fprintf(c.w, "[%s] %s\n", severity, text)
}

func (c *Console) AppendStatus(text string, severity Severity) {
	_, _ = fmt.Fprintf(c.w, "[%s] %s\n", severity, text)
}

func (c *Console) SetElapsed(text string) {
	if text == c.lastTime {
		return
	}
	c.lastTime = text
	c.changes++
	if c.PrintEvery > 1 && (c.changes-1)%c.PrintEvery != 0 {
		return
	}
	_, _ = fmt.Fprintf(c.w, "elapsed %s\n", text)
}

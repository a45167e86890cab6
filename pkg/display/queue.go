package display

import (
	"sync"
)

// Queue is the single UI task queue. Every display mutation is submitted as a
// func and run, in submission order, by one goroutine. Sinks behind a queue are
// never touched concurrently.
type Queue struct {
	tasks  chan func()
	done   chan struct{}
	mutex  sync.RWMutex
	closed bool
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	q := &Queue{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.done)
	for task := range q.tasks {
		task()
	}
}

// Submit enqueues task. It blocks while the queue is full and drops the task
// once the queue is closed.
func (q *Queue) Submit(task func()) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	if q.closed {
		return
	}
	q.tasks <- task
}

// Close stops accepting tasks and waits until everything already submitted ran.
func (q *Queue) Close() {
	q.mutex.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mutex.Unlock()
	<-q.done
}

// Flush waits until every task submitted before the call has run.
func (q *Queue) Flush() {
	ch := make(chan struct{})
	q.mutex.RLock()
	if q.closed {
		q.mutex.RUnlock()
		<-q.done
		return
	}
	q.tasks <- func() { close(ch) }
	q.mutex.RUnlock()
	<-ch
}

type queued struct {
	q    *Queue
	sink Sink
}

// Queued wraps sink so that every call is run on q.
func Queued(q *Queue, sink Sink) Sink {
	return &queued{q: q, sink: sink}
}

func (s *queued) SetStatus(text string, severity Severity) {
	s.q.Submit(func() { s.sink.SetStatus(text, severity) })
}

func (s *queued) AppendStatus(text string, severity Severity) {
	s.q.Submit(func() { s.sink.AppendStatus(text, severity) })
}

func (s *queued) SetElapsed(text string) {
	s.q.Submit(func() { s.sink.SetElapsed(text) })
}

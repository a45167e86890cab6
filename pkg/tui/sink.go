package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
)

// Sender is the part of *tea.Program a Sink needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink turns display calls into messages for the program's update loop, which
// is the only place the screen state changes. Calls made while no program is
// attached are dropped.
type Sink struct {
	mutex  sync.RWMutex
	sender Sender
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Attach(sender Sender) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sender = sender
}

func (s *Sink) send(msg tea.Msg) {
	s.mutex.RLock()
	sender := s.sender
	s.mutex.RUnlock()
	if sender != nil {
		sender.Send(msg)
	}
}

func (s *Sink) SetStatus(text string, severity display.Severity) {
	s.send(statusSetMsg{text: text, severity: severity})
}

func (s *Sink) AppendStatus(text string, severity display.Severity) {
	s.send(statusAppendMsg{text: text, severity: severity})
}

func (s *Sink) SetElapsed(text string) {
	s.send(elapsedMsg(text))
}

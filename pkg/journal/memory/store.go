package memoryJournal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devlibx/gox-dozeprobe/pkg/journal"
)

type store struct {
	mutex    sync.RWMutex
	sessions map[string]*journal.Session
	order    []string
}

func NewStore() journal.Store {
	return &store{sessions: map[string]*journal.Session{}}
}

func (s *store) StartSession(ctx context.Context, id string, startedAt time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.order = append(s.order, id)
	}
	s.sessions[id] = &journal.Session{ID: id, StartedAt: startedAt, Outcome: journal.OutcomeRunning}
	return nil
}

func (s *store) RecordResult(ctx context.Context, id string, outcome journal.ProbeOutcome) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return journal.ErrSessionNotFound
	}
	session.Outcome = outcome.Outcome
	session.Kind = outcome.Kind
	session.Reason = outcome.Reason
	session.BytesTransferred = outcome.BytesTransferred
	session.ResultAt = outcome.At
	return nil
}

func (s *store) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return journal.ErrSessionNotFound
	}
	session.EndedAt = endedAt
	return nil
}

func (s *store) List(ctx context.Context, limit int) ([]journal.Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	toRet := make([]journal.Session, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		toRet = append(toRet, *s.sessions[s.order[i]])
	}
	sort.SliceStable(toRet, func(i, j int) bool { return toRet[i].StartedAt.After(toRet[j].StartedAt) })
	if limit > 0 && len(toRet) > limit {
		toRet = toRet[:limit]
	}
	return toRet, nil
}

package memoryLock

import (
	"context"
	"sync"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/common/lock"
)

// ErrHeldByOther is returned when a different owner already holds the key.
var ErrHeldByOther = errors.New("hold is owned by another owner")

type record struct {
	ownerID string
	epoch   int64
}

// service is an in-process Locker. It backs --dry-run and the tests; nothing is
// asked of the host.
type service struct {
	gox.CrossFunction
	mutex   sync.Mutex
	held    map[string]*record
	epochs  map[string]int64
	history []string
}

// Locker is the concrete type returned by NewLocker; tests use it to look at
// what was taken.
type Locker interface {
	lock.Locker
	IsHeld(key string) bool
	History() []string
}

func NewLocker(cf gox.CrossFunction) Locker {
	return &service{
		CrossFunction: cf,
		held:          map[string]*record{},
		epochs:        map[string]int64{},
	}
}

func (s *service) Acquire(ctx context.Context, request *lock.AcquireRequest) (*lock.AcquireResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if r, ok := s.held[request.LockKey]; ok {
		if r.ownerID != request.OwnerID {
			return &lock.AcquireResponse{OwnerID: r.ownerID, Acquired: false, Epoch: r.epoch}, ErrHeldByOther
		}
		return &lock.AcquireResponse{OwnerID: r.ownerID, Acquired: true, Epoch: r.epoch}, nil
	}

	s.epochs[request.LockKey]++
	r := &record{ownerID: request.OwnerID, epoch: s.epochs[request.LockKey]}
	s.held[request.LockKey] = r
	s.history = append(s.history, "acquire:"+request.LockKey)
	return &lock.AcquireResponse{OwnerID: r.ownerID, Acquired: true, Epoch: r.epoch}, nil
}

func (s *service) Release(ctx context.Context, request *lock.ReleaseRequest) (*lock.ReleaseResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.held[request.LockKey]; !ok {
		return &lock.ReleaseResponse{Released: false}, nil
	}
	delete(s.held, request.LockKey)
	s.history = append(s.history, "release:"+request.LockKey)
	return &lock.ReleaseResponse{Released: true}, nil
}

func (s *service) IsHeld(key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.held[key]
	return ok
}

func (s *service) History() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.history...)
}

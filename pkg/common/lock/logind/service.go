// Package logindLock implements the CPU wake hold on top of systemd-logind
// inhibitor locks. The hold is the file descriptor handed back by
// org.freedesktop.login1.Manager.Inhibit; the inhibitor stays active until
// every copy of that descriptor is closed.
package logindLock

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/devlibx/gox-base/v2"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/common/lock"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	dbusName      = "org.freedesktop.login1"
	dbusPath      = "/org/freedesktop/login1"
	dbusInterface = "org.freedesktop.login1.Manager"

	// What is blocked while the hold is taken.
	InhibitWhat = "sleep:idle"
	InhibitMode = "block"
	InhibitWho  = "dozeprobe"
)

// Inhibitor takes a logind inhibitor lock. The returned closer releases it.
type Inhibitor interface {
	Inhibit(ctx context.Context, what, who, why, mode string) (io.Closer, error)
}

type dbusInhibitor struct {
	obj dbus.BusObject
}

// NewDBusInhibitor talks to logind over conn, a system bus connection.
func NewDBusInhibitor(conn *dbus.Conn) Inhibitor {
	return &dbusInhibitor{obj: conn.Object(dbusName, dbusPath)}
}

func (d *dbusInhibitor) Inhibit(ctx context.Context, what, who, why, mode string) (io.Closer, error) {
	var fd dbus.UnixFD
	if err := d.obj.CallWithContext(ctx, dbusInterface+".Inhibit", 0, what, who, why, mode).Store(&fd); err != nil {
		return nil, errors.Wrap(err, "failed to call %s.Inhibit", dbusInterface)
	}
	return os.NewFile(uintptr(fd), "inhibit"), nil
}

type service struct {
	gox.CrossFunction
	logger    *zap.Logger
	inhibitor Inhibitor

	mutex  sync.Mutex
	holds  map[string]io.Closer
	owners map[string]string
	epoch  int64
}

func NewLogindLockService(cf gox.CrossFunction, logger *zap.Logger, inhibitor Inhibitor) lock.Locker {
	return &service{
		CrossFunction: cf,
		logger:        logger.Named("logind"),
		inhibitor:     inhibitor,
		holds:         map[string]io.Closer{},
		owners:        map[string]string{},
	}
}

func (s *service) Acquire(ctx context.Context, request *lock.AcquireRequest) (*lock.AcquireResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.holds[request.LockKey]; ok {
		return &lock.AcquireResponse{OwnerID: s.owners[request.LockKey], Acquired: true, Epoch: s.epoch}, nil
	}

	why := "probing network under power saving: " + request.LockKey
	closer, err := s.inhibitor.Inhibit(ctx, InhibitWhat, InhibitWho, why, InhibitMode)
	if err != nil {
		return nil, errors.Wrap(err, "failed to take cpu wake hold %s", request.LockKey)
	}
	s.holds[request.LockKey] = closer
	s.owners[request.LockKey] = request.OwnerID
	s.epoch++
	s.logger.Info("cpu wake hold acquired", zap.String("key", request.LockKey), zap.String("owner", request.OwnerID), zap.Int64("epoch", s.epoch))

	return &lock.AcquireResponse{OwnerID: request.OwnerID, Acquired: true, Epoch: s.epoch}, nil
}

func (s *service) Release(ctx context.Context, request *lock.ReleaseRequest) (*lock.ReleaseResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	closer, ok := s.holds[request.LockKey]
	if !ok {
		return &lock.ReleaseResponse{Released: false}, nil
	}
	delete(s.holds, request.LockKey)
	delete(s.owners, request.LockKey)
	if err := closer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to release cpu wake hold %s", request.LockKey)
	}
	s.logger.Info("cpu wake hold released", zap.String("key", request.LockKey))
	return &lock.ReleaseResponse{Released: true}, nil
}

package lock

import (
	"context"
	"time"
)

// Locker is the interface that wraps the basic hold and release methods of a
// platform resource hold (CPU wake hold, network keep-alive hold).
type Locker interface {
	// Acquire takes the hold. Acquiring a hold that is already held by the same
	// owner returns Acquired=true without taking it a second time.
	Acquire(ctx context.Context, request *AcquireRequest) (*AcquireResponse, error)

	// Release gives the hold back. Releasing a hold that is not held is a no-op.
	Release(ctx context.Context, request *ReleaseRequest) (*ReleaseResponse, error)
}

type AcquireRequest struct {
	LockKey string
	OwnerID string
	TTL     time.Duration // zero means held until released
}

type AcquireResponse struct {
	OwnerID  string
	Acquired bool
	Epoch    int64 // incremented on every fresh acquire
}

type ReleaseRequest struct {
	LockKey string
	OwnerID string
}

type ReleaseResponse struct {
	Released bool
}

// Well known hold tags.
const (
	KeyCPU     = "dozeprobe-cpu"
	KeyNetwork = "dozeprobe-net"
)

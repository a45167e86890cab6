// Package journal keeps a record of acquire cycles and how their probe run
// ended, so a long run can be looked at afterwards.
package journal

import (
	"context"
	"time"

	"github.com/devlibx/gox-base/v2/errors"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one acquire/release cycle.
type Session struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at,omitempty"`
	Outcome          string    `json:"outcome"`
	Kind             string    `json:"kind,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	BytesTransferred int64     `json:"bytes_transferred"`
	ResultAt         time.Time `json:"result_at,omitempty"`
}

// Outcome of a session that has no probe result yet.
const OutcomeRunning = "running"

// ProbeOutcome is what RecordResult stores.
type ProbeOutcome struct {
	Outcome          string
	Kind             string
	Reason           string
	BytesTransferred int64
	At               time.Time
}

type Store interface {
	StartSession(ctx context.Context, id string, startedAt time.Time) error
	RecordResult(ctx context.Context, id string, outcome ProbeOutcome) error
	EndSession(ctx context.Context, id string, endedAt time.Time) error

	// List returns the most recent sessions first.
	List(ctx context.Context, limit int) ([]Session, error)
}

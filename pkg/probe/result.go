package probe

import (
	"fmt"
	"time"
)

// Status is where a probe run stands.
type Status int

const (
	InProgress Status = iota
	Failed
	Completed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case Failed:
		return "failed"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Kind tells failures apart. Both kinds are surfaced to the user the same way.
type Kind int

const (
	KindNone Kind = iota
	KindConnectivityLost
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConnectivityLost:
		return "connectivity-lost"
	case KindTransport:
		return "transport"
	}
	return "none"
}

// Result is the outcome, or the progress, of one probe run.
type Result struct {
	Status           Status
	Kind             Kind
	Reason           string
	BytesTransferred int64
	At               time.Time
	Err              error
}

// Terminal is false only for InProgress.
func (r Result) Terminal() bool {
	return r.Status != InProgress
}

// Describe is the one-line report shown to the user.
func (r Result) Describe() string {
	switch r.Status {
	case Failed:
		return fmt.Sprintf("File download failed at %s; error=%s, bytesTransferred=%d",
			r.At.Format(time.RFC1123), r.Reason, r.BytesTransferred)
	case Completed:
		return fmt.Sprintf("File download completed at %s; bytesTransferred=%d",
			r.At.Format(time.RFC1123), r.BytesTransferred)
	case Cancelled:
		return fmt.Sprintf("File download cancelled at %s; bytesTransferred=%d",
			r.At.Format(time.RFC1123), r.BytesTransferred)
	}
	return fmt.Sprintf("Downloading file; bytesTransferred=%d", r.BytesTransferred)
}

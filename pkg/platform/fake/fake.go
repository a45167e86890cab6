// Package fake provides scripted platform collaborators for tests and
// --dry-run.
package fake

import (
	"context"
	"sync"

	"github.com/devlibx/gox-dozeprobe/pkg/platform"
)

// Policy is a PowerPolicy whose answer is set by the caller.
type Policy struct {
	mutex    sync.Mutex
	exempt   bool
	err      error
	requests int
}

func NewPolicy(exempt bool) *Policy {
	return &Policy{exempt: exempt}
}

func (p *Policy) IsExempt(ctx context.Context) (bool, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.exempt, p.err
}

func (p *Policy) RequestExemption(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.requests++
	return nil
}

func (p *Policy) SetExempt(exempt bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.exempt = exempt
}

func (p *Policy) SetError(err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.err = err
}

// Requests is the number of RequestExemption calls so far.
func (p *Policy) Requests() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.requests
}

// Connectivity reports the interface up for the first UpFor queries and down
// afterwards. A negative UpFor keeps it up forever.
type Connectivity struct {
	mutex   sync.Mutex
	upFor   int
	queries int
	err     error
}

func NewConnectivity(upFor int) *Connectivity {
	return &Connectivity{upFor: upFor}
}

// AlwaysUp never reports the interface down.
func AlwaysUp() *Connectivity {
	return NewConnectivity(-1)
}

func (c *Connectivity) WifiState(ctx context.Context, iface string) (platform.WifiState, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.queries++
	if c.err != nil {
		return platform.WifiState{}, c.err
	}
	if c.upFor >= 0 && c.queries > c.upFor {
		return platform.WifiState{Available: false, Connected: false}, nil
	}
	return platform.WifiState{Available: true, Connected: true}, nil
}

// Reset starts a new script: up for the next upFor queries, then down.
func (c *Connectivity) Reset(upFor int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.upFor = upFor
	c.queries = 0
}

func (c *Connectivity) SetError(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.err = err
}

func (c *Connectivity) Queries() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.queries
}

// Package platform describes the host collaborators the lock controller and
// the connectivity probe depend on: the power-saving exemption and the WiFi
// reachability query.
package platform

import "context"

// PowerPolicy answers whether this process is exempt from power-saving
// restrictions, and asks the user to grant the exemption when it is not.
type PowerPolicy interface {
	IsExempt(ctx context.Context) (bool, error)
	RequestExemption(ctx context.Context) error
}

// WifiState is the reachability of a wireless interface.
type WifiState struct {
	Available bool
	Connected bool
}

// Up is true when the interface is both available and connected.
func (w WifiState) Up() bool {
	return w.Available && w.Connected
}

// Connectivity queries the current network reachability of an interface.
type Connectivity interface {
	WifiState(ctx context.Context, iface string) (WifiState, error)
}

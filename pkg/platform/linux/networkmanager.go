package linux

import (
	"context"
	stdErrors "errors"

	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/platform"
	"github.com/godbus/dbus/v5"
)

const (
	nmName            = "org.freedesktop.NetworkManager"
	nmPath            = "/org/freedesktop/NetworkManager"
	nmInterface       = "org.freedesktop.NetworkManager"
	nmDeviceInterface = "org.freedesktop.NetworkManager.Device"
)

// NetworkManager device states, see NMDeviceState.
const (
	DeviceStateUnknown     uint32 = 0
	DeviceStateUnmanaged   uint32 = 10
	DeviceStateUnavailable uint32 = 20
	DeviceStateDisconnect  uint32 = 30
	DeviceStateActivated   uint32 = 100
)

// StateToWifi maps a NetworkManager device state to a WifiState.
func StateToWifi(state uint32) platform.WifiState {
	return platform.WifiState{
		Available: state > DeviceStateUnavailable,
		Connected: state == DeviceStateActivated,
	}
}

type networkManager struct {
	conn *dbus.Conn
}

// NewNetworkManager returns a Connectivity backed by NetworkManager on the
// system bus.
func NewNetworkManager(conn *dbus.Conn) platform.Connectivity {
	return &networkManager{conn: conn}
}

func (n *networkManager) WifiState(ctx context.Context, iface string) (platform.WifiState, error) {
	var devicePath dbus.ObjectPath
	obj := n.conn.Object(nmName, nmPath)
	if err := obj.CallWithContext(ctx, nmInterface+".GetDeviceByIpIface", 0, iface).Store(&devicePath); err != nil {
		// An interface that vanished is reported as down, not as a query failure
		if isDBusError(err, nmInterface+".UnknownDevice") {
			return platform.WifiState{}, nil
		}
		return platform.WifiState{}, errors.Wrap(err, "failed to look up device %s", iface)
	}

	v, err := n.conn.Object(nmName, devicePath).GetProperty(nmDeviceInterface + ".State")
	if err != nil {
		return platform.WifiState{}, errors.Wrap(err, "failed to read state of device %s", iface)
	}
	state, ok := v.Value().(uint32)
	if !ok {
		return platform.WifiState{}, errors.New("unexpected type for device state: " + v.Signature().String())
	}
	return StateToWifi(state), nil
}

func isDBusError(err error, name string) bool {
	var value dbus.Error
	if stdErrors.As(err, &value) {
		return value.Name == name
	}
	var ptr *dbus.Error
	if stdErrors.As(err, &ptr) {
		return ptr.Name == name
	}
	return false
}

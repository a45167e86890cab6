package linux

import (
	"context"

	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/platform"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	ppName      = "net.hadess.PowerProfiles"
	ppPath      = "/net/hadess/PowerProfiles"
	ppInterface = "net.hadess.PowerProfiles"

	notifyName      = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications"

	ProfilePowerSaver = "power-saver"
)

// ExemptionRequest is the text shown to the user when the process is not exempt.
const (
	ExemptionSummary = "dozeprobe needs a power saving exemption"
	ExemptionBody    = "Switch the power profile away from power-saver, then press 'Acquire' again."
)

type powerProfiles struct {
	system  *dbus.Conn
	session *dbus.Conn
	logger  *zap.Logger
}

// NewPowerProfiles returns a PowerPolicy backed by power-profiles-daemon on the
// system bus. session may be nil when no desktop session is around, in which
// case exemption requests are only logged.
func NewPowerProfiles(system, session *dbus.Conn, logger *zap.Logger) platform.PowerPolicy {
	return &powerProfiles{system: system, session: session, logger: logger.Named("power-profiles")}
}

// IsExemptProfile is the exemption rule applied to the active profile.
func IsExemptProfile(profile string) bool {
	return profile != ProfilePowerSaver
}

func (p *powerProfiles) IsExempt(ctx context.Context) (bool, error) {
	v, err := p.system.Object(ppName, ppPath).GetProperty(ppInterface + ".ActiveProfile")
	if err != nil {
		if isDBusError(err, "org.freedesktop.DBus.Error.ServiceUnknown") {
			// No power profile policy on this host
			p.logger.Debug("power-profiles-daemon not running, treating process as exempt")
			return true, nil
		}
		return false, errors.Wrap(err, "failed to read active power profile")
	}
	profile, ok := v.Value().(string)
	if !ok {
		return false, errors.New("unexpected type for ActiveProfile: " + v.Signature().String())
	}
	return IsExemptProfile(profile), nil
}

func (p *powerProfiles) RequestExemption(ctx context.Context) error {
	if p.session == nil {
		p.logger.Warn(ExemptionSummary, zap.String("action", ExemptionBody))
		return nil
	}
	var id uint32
	err := p.session.Object(notifyName, notifyPath).CallWithContext(ctx, notifyInterface+".Notify", 0,
		"dozeprobe", uint32(0), "", ExemptionSummary, ExemptionBody,
		[]string{}, map[string]dbus.Variant{}, int32(-1),
	).Store(&id)
	if err != nil {
		return errors.Wrap(err, "failed to post exemption request notification")
	}
	p.logger.Info("exemption request posted", zap.Uint32("notification", id))
	return nil
}

// AlwaysExempt is the policy used with hold.assume_exempt.
type AlwaysExempt struct{}

func (AlwaysExempt) IsExempt(ctx context.Context) (bool, error) { return true, nil }

func (AlwaysExempt) RequestExemption(ctx context.Context) error { return nil }

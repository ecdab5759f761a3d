package instrument

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"pytestlab/internal/profile"
	"pytestlab/internal/transport"
)

// Driver is the common base contract every device-type driver satisfies:
// connect, id, close.
type Driver interface {
	Connect(ctx context.Context, suppressIDN bool) error
	ID() string
	Close() error
}

// RawDriver is the superset every concrete driver also happens to
// satisfy by embedding *Base, which promotes Write/Query. Tooling that
// issues ad hoc SCPI (the CLI's `replay record`/`replay run`, sim-profile
// diagnostics) asserts down to this instead of the narrower Driver so it
// never needs a device-type switch of its own.
type RawDriver interface {
	Driver
	Write(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string) (string, error)
	RawTransport() transport.Transport
}

// New constructs the device-type driver matching spec.DeviceType. This is
// the one place device_type maps onto a concrete Go type; once built, the
// caller interacts with the concrete type's own facades, with no further
// dynamic dispatch, so calling a PSU-only method on a value typed as
// *Oscilloscope is a compile error, never a runtime one.
func New(spec *profile.Spec, t transport.Transport, alias string, safety SafetyOverlay, complianceKeyRef string, log *logrus.Logger) (Driver, error) {
	base := NewBase(spec, t, alias, safety, complianceKeyRef, log)
	switch spec.DeviceType {
	case profile.DeviceOscilloscope:
		return NewOscilloscope(base), nil
	case profile.DevicePSU:
		return NewPowerSupply(base), nil
	case profile.DeviceDMM:
		return NewMultimeter(base), nil
	case profile.DeviceAWG:
		return NewWaveformGenerator(base), nil
	case profile.DeviceLoad:
		return NewElectronicLoad(base), nil
	case profile.DeviceSA:
		return NewSpectrumAnalyzer(base), nil
	case profile.DeviceVNA:
		return NewVectorNetworkAnalyzer(base), nil
	case profile.DevicePowerMeter:
		return NewPowerMeter(base), nil
	default:
		return nil, fmt.Errorf("unsupported device_type %q", spec.DeviceType)
	}
}

// Package instrument implements the polymorphic device drivers: tagged
// variants over the capability sets, with a common base contract. Base
// carries the skeleton every device-type driver
// shares: connect/id/close, the profile-declared SCPI template lookup,
// the post-write error sweep, and the safety-limit overlay check. Each
// concrete driver (Oscilloscope, PowerSupply, ...) embeds Base and exposes
// only the facades appropriate to its device type, so a DMM has no
// trigger.setup_edge and a scope has no set_current: cross-type misuse is
// a compile-time error, not a runtime one.
package instrument

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/profile"
	"pytestlab/internal/transport"
	"pytestlab/pkg/scpi"
)

// ErrorSweepMode controls when the runtime drains the error queue after a
// write.
type ErrorSweepMode string

const (
	SweepOff     ErrorSweepMode = "off"
	SweepPerCall ErrorSweepMode = "per_call"
	SweepBatched ErrorSweepMode = "batched"
	SweepOnClose ErrorSweepMode = "on_close"
)

// Bound is one {max, min} pair for one quantity, after the bench overlay
// has been merged on top of the profile's schema (tightening only).
type Bound struct {
	Max *float64
	Min *float64
}

// SafetyOverlay is the per-channel, per-quantity resolved limit set an
// Instrument enforces before any write reaches the wire.
type SafetyOverlay map[int]map[string]Bound

// Base is the common skeleton embedded by every device-type driver.
type Base struct {
	Alias      string
	Spec       *profile.Spec
	Transport  transport.Transport
	Log        *logrus.Logger
	Safety     SafetyOverlay
	SweepMode  ErrorSweepMode
	ComplianceKeyRef string

	mu          sync.Mutex
	identity    string
	commandTrace []string
}

// NewBase constructs the shared skeleton. Concrete drivers call this from
// their own constructor, taking a ProfileSpec, Transport, alias, and
// optional safety overlay and compliance key reference.
func NewBase(spec *profile.Spec, t transport.Transport, alias string, safety SafetyOverlay, complianceKeyRef string, log *logrus.Logger) *Base {
	if safety == nil {
		safety = SafetyOverlay{}
	}
	return &Base{
		Alias:            alias,
		Spec:             spec,
		Transport:        t,
		Log:              log,
		Safety:           safety,
		SweepMode:        SweepPerCall,
		ComplianceKeyRef: complianceKeyRef,
	}
}

// Connect calls the transport's connect, issues *IDN? (unless suppressed),
// and records the identity string.
func (b *Base) Connect(ctx context.Context, suppressIDN bool) error {
	if err := b.Transport.Connect(ctx); err != nil {
		return err
	}
	if suppressIDN {
		return nil
	}
	idn, err := b.Transport.Query(ctx, scpi.IdentityQuery)
	if err != nil {
		return err
	}
	b.identity = idn
	if h, ok := b.Transport.(interface{ SetIdentity(string) }); ok {
		h.SetIdentity(idn)
	}
	return nil
}

// ID returns the recorded identity string.
func (b *Base) ID() string { return b.identity }

// RawTransport exposes the underlying Transport, promoted to every
// concrete driver by embedding. Tooling that needs to reach past the
// device-type facade (the bench's recording flush, the CLI's replay and
// sim-profile diagnostics) uses this
// instead of adding a transport accessor to every driver type.
func (b *Base) RawTransport() transport.Transport { return b.Transport }

// Close releases the owned transport. Idempotent because Transport.Close
// is idempotent.
func (b *Base) Close() error {
	if b.SweepMode == SweepOnClose {
		if _, err := b.Transport.ClearErrors(context.Background()); err != nil {
			b.Log.WithError(err).Warn("error sweep on close failed")
		}
	}
	return b.Transport.Close()
}

// Template returns the profile-declared SCPI template for key, falling
// back to the built-in device-type template.
func (b *Base) Template(key string) string {
	if b.Spec.SCPITemplates != nil {
		if t, ok := b.Spec.SCPITemplates[key]; ok {
			return t
		}
	}
	return scpi.DefaultTemplates()[key]
}

// CheckSafety validates value against the per-channel/quantity overlay
// before any I/O runs. No write or query happens if this returns an
// error.
func (b *Base) CheckSafety(channel int, quantity string, value float64) error {
	chBounds, ok := b.Safety[channel]
	if !ok {
		return nil
	}
	bound, ok := chBounds[quantity]
	if !ok {
		return nil
	}
	if bound.Max != nil && value > *bound.Max {
		return &pterrors.SafetyLimitError{Alias: b.Alias, Channel: channel, Quantity: quantity, Value: value, Bound: *bound.Max}
	}
	if bound.Min != nil && value < *bound.Min {
		return &pterrors.SafetyLimitError{Alias: b.Alias, Channel: channel, Quantity: quantity, Value: value, Bound: *bound.Min}
	}
	return nil
}

// Write issues cmd, records it in the command trace fingerprint, and runs
// the configured error sweep.
func (b *Base) Write(ctx context.Context, cmd string) error {
	if err := b.Transport.Write(ctx, cmd); err != nil {
		return err
	}
	b.recordTrace(cmd)
	return b.sweepIfPerCall(ctx)
}

// Query issues cmd and records it in the trace fingerprint.
func (b *Base) Query(ctx context.Context, cmd string) (string, error) {
	resp, err := b.Transport.Query(ctx, cmd)
	if err != nil {
		return "", err
	}
	b.recordTrace(cmd)
	if err := b.sweepIfPerCall(ctx); err != nil {
		return resp, err
	}
	return resp, nil
}

func (b *Base) sweepIfPerCall(ctx context.Context) error {
	if b.SweepMode != SweepPerCall {
		return nil
	}
	errs, err := b.Transport.ClearErrors(ctx)
	if err != nil {
		return err
	}
	return instrumentErrorFromQueue(b.Alias, errs)
}

// Sweep runs the error-queue drain unconditionally (used for "batched"
// mode, invoked explicitly by the caller between batches).
func (b *Base) Sweep(ctx context.Context) error {
	errs, err := b.Transport.ClearErrors(ctx)
	if err != nil {
		return err
	}
	return instrumentErrorFromQueue(b.Alias, errs)
}

// instrumentErrorFromQueue reports every entry ClearErrors drained, not
// just the first: a multi-entry error queue would otherwise silently
// drop all but one reported error.
func instrumentErrorFromQueue(alias string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return &pterrors.InstrumentError{Alias: alias, Code: 0, Text: strings.Join(errs, "; ")}
}

func (b *Base) recordTrace(cmd string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commandTrace = append(b.commandTrace, cmd)
}

// TraceFingerprint returns and clears the trace of SCPI commands executed
// since the previous call, in execution order, used by the compliance
// envelope (Canonicalize sorts it).
func (b *Base) TraceFingerprint() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.commandTrace))
	copy(out, b.commandTrace)
	b.commandTrace = nil
	return out
}

// RequireChannel validates that index exists in the profile before any
// channel-scoped operation proceeds.
func (b *Base) RequireChannel(index int) (*profile.ChannelSpec, error) {
	ch, ok := b.Spec.Channel(index)
	if !ok {
		return nil, pterrors.NewProfileError(b.Spec.ModelID, fmt.Sprintf("channel %d is not declared", index), nil)
	}
	return ch, nil
}

package instrument

import (
	"context"
	"fmt"

	"pytestlab/internal/frame"
)

// PowerSupply is the PSU device-type driver.
type PowerSupply struct{ *Base }

func NewPowerSupply(b *Base) *PowerSupply { return &PowerSupply{Base: b} }

func (p *PowerSupply) Channel(i int) *PSUChannelFacade { return &PSUChannelFacade{psu: p, index: i} }

// PSUChannelFacade is the "channel(i)" selector for a power supply.
type PSUChannelFacade struct {
	psu   *PowerSupply
	index int
}

// Set applies voltage/current_limit, rejecting out-of-range settings
// against the safety overlay before any write reaches the wire.
func (c *PSUChannelFacade) Set(ctx context.Context, voltage, currentLimit float64) (*PSUChannelFacade, error) {
	if _, err := c.psu.RequireChannel(c.index); err != nil {
		return c, err
	}
	if err := c.psu.CheckSafety(c.index, "voltage", voltage); err != nil {
		return c, err
	}
	if err := c.psu.CheckSafety(c.index, "current", currentLimit); err != nil {
		return c, err
	}
	cmd := fmt.Sprintf(c.psu.Template("psu.channel.set"), c.index, voltage, c.index, currentLimit)
	return c, c.psu.Write(ctx, cmd)
}

// Slew configures the channel's voltage ramp duration, chained between
// Set and On the same way the facade's Python counterpart chains
// set(...).slew(duration_s).on().
func (c *PSUChannelFacade) Slew(ctx context.Context, durationS float64) (*PSUChannelFacade, error) {
	if _, err := c.psu.RequireChannel(c.index); err != nil {
		return c, err
	}
	cmd := fmt.Sprintf(c.psu.Template("psu.voltage.slew"), c.index, durationS)
	return c, c.psu.Write(ctx, cmd)
}

func (c *PSUChannelFacade) On(ctx context.Context) (*PSUChannelFacade, error) {
	return c, c.psu.Write(ctx, fmt.Sprintf(c.psu.Template("psu.output.on"), c.index))
}

func (c *PSUChannelFacade) Off(ctx context.Context) (*PSUChannelFacade, error) {
	return c, c.psu.Write(ctx, fmt.Sprintf(c.psu.Template("psu.output.off"), c.index))
}

func (c *PSUChannelFacade) MeasureVoltage(ctx context.Context) (*frame.Result, error) {
	resp, err := c.psu.Query(ctx, fmt.Sprintf(c.psu.Template("psu.measure.voltage"), c.index))
	if err != nil {
		return nil, err
	}
	v, err := ParseScalar(resp)
	if err != nil {
		return nil, err
	}
	return scalarResult(v, "V", c.psu.Base), nil
}

func (c *PSUChannelFacade) MeasureCurrent(ctx context.Context) (*frame.Result, error) {
	resp, err := c.psu.Query(ctx, fmt.Sprintf(c.psu.Template("psu.measure.current"), c.index))
	if err != nil {
		return nil, err
	}
	v, err := ParseScalar(resp)
	if err != nil {
		return nil, err
	}
	return scalarResult(v, "A", c.psu.Base), nil
}

func scalarResult(value float64, unit string, b *Base) *frame.Result {
	return &frame.Result{
		Kind:   frame.KindScalar,
		Scalar: &frame.Scalar{Value: value},
		Units:  unit,
		Provenance: frame.Provenance{
			Actor:         "session",
			InstrumentIDN: b.ID(),
			ProfileHash:   b.Spec.ModelID,
		},
	}
}

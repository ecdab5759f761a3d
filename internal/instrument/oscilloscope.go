package instrument

import (
	"context"
	"fmt"

	"pytestlab/internal/frame"
	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/transport"
)

// Oscilloscope is the Scope device-type driver.
type Oscilloscope struct {
	*Base
	waveformByteWidth int
}

// NewOscilloscope wraps Base for the oscilloscope device type.
func NewOscilloscope(b *Base) *Oscilloscope {
	return &Oscilloscope{Base: b, waveformByteWidth: 1}
}

// Channel returns a chainable selector bound to channel index i.
func (o *Oscilloscope) Channel(i int) *ScopeChannelFacade {
	return &ScopeChannelFacade{scope: o, index: i}
}

// Trigger returns the trigger selector.
func (o *Oscilloscope) Trigger() *TriggerFacade { return &TriggerFacade{scope: o} }

// Acquisition returns the acquisition-mode selector.
func (o *Oscilloscope) Acquisition() *AcquisitionFacade { return &AcquisitionFacade{scope: o} }

// ScopeChannelFacade is the "channel(i)" selector for a scope. Every
// method is eager and returns the facade for chaining.
type ScopeChannelFacade struct {
	scope *Oscilloscope
	index int
}

func (c *ScopeChannelFacade) Setup(ctx context.Context, scale, offset float64, coupling string) (*ScopeChannelFacade, error) {
	if _, err := c.scope.RequireChannel(c.index); err != nil {
		return c, err
	}
	cmd := fmt.Sprintf(c.scope.Template("scope.channel.scale"), c.index, scale)
	if err := c.scope.Write(ctx, cmd); err != nil {
		return c, err
	}
	cmd = fmt.Sprintf(c.scope.Template("scope.channel.offset"), c.index, offset)
	if err := c.scope.Write(ctx, cmd); err != nil {
		return c, err
	}
	cmd = fmt.Sprintf(c.scope.Template("scope.channel.coupling"), c.index, coupling)
	if err := c.scope.Write(ctx, cmd); err != nil {
		return c, err
	}
	return c, nil
}

func (c *ScopeChannelFacade) Enable(ctx context.Context) (*ScopeChannelFacade, error) {
	cmd := fmt.Sprintf(c.scope.Template("scope.channel.enable"), c.index)
	return c, c.scope.Write(ctx, cmd)
}

func (c *ScopeChannelFacade) Disable(ctx context.Context) (*ScopeChannelFacade, error) {
	cmd := fmt.Sprintf(c.scope.Template("scope.channel.disable"), c.index)
	return c, c.scope.Write(ctx, cmd)
}

// TriggerFacade is the "trigger" selector.
type TriggerFacade struct{ scope *Oscilloscope }

func (t *TriggerFacade) SetupEdge(ctx context.Context, source string, level float64, slope string) (*TriggerFacade, error) {
	if slope == "" {
		slope = "POSitive"
	}
	cmd := fmt.Sprintf(t.scope.Template("scope.trigger.edge"), source, level, slope)
	return t, t.scope.Write(ctx, cmd)
}

func (t *TriggerFacade) Single(ctx context.Context) (*TriggerFacade, error) {
	return t, t.scope.Write(ctx, t.scope.Template("scope.trigger.single"))
}

// AcquisitionFacade is the "acquisition" selector.
type AcquisitionFacade struct{ scope *Oscilloscope }

func (a *AcquisitionFacade) SetType(ctx context.Context, acqType string) (*AcquisitionFacade, error) {
	cmd := fmt.Sprintf(a.scope.Template("scope.acquire.type"), acqType)
	return a, a.scope.Write(ctx, cmd)
}

// ReadChannels reads a waveform frame for the first channel index in
// indices, decoding the IEEE-488.2 binary block per the declared
// preamble. Indices after the first are not read.
func (o *Oscilloscope) ReadChannels(ctx context.Context, indices []int) (*frame.Result, error) {
	if len(indices) == 0 {
		return nil, pterrors.NewProfileError(o.Spec.ModelID, "read_channels requires at least one channel index", nil)
	}
	idx := indices[0]
	if _, err := o.RequireChannel(idx); err != nil {
		return nil, err
	}

	preCmd := o.Template("scope.waveform.preamble")
	preResp, err := o.Query(ctx, preCmd)
	if err != nil {
		return nil, err
	}
	preamble, err := ParsePreamble(preResp)
	if err != nil {
		return nil, err
	}

	dataCmd := fmt.Sprintf(o.Template("scope.waveform.data"), idx)

	var raw []byte
	if transport.BinarySource(o.Transport) {
		if err := o.Write(ctx, dataCmd); err != nil {
			return nil, err
		}
		raw, err = o.Transport.ReadRaw(ctx, 0)
		if err != nil {
			return nil, err
		}
	} else {
		// Simulated/replayed transports answer the data query through
		// Query rather than a distinct binary read.
		resp, qerr := o.Query(ctx, dataCmd)
		if qerr != nil {
			return nil, qerr
		}
		raw = syntheticWaveformBytes(resp, preamble.Points, o.waveformByteWidth)
	}

	wf, err := DecodeWaveform(raw, preamble, o.waveformByteWidth)
	if err != nil {
		return nil, err
	}
	return &frame.Result{
		Kind:     frame.KindWaveform,
		Waveform: wf,
		Units:    "V",
		Provenance: frame.Provenance{
			Actor:         "session",
			InstrumentIDN: o.ID(),
			ProfileHash:   o.Spec.ModelID,
		},
	}, nil
}

// syntheticWaveformBytes deterministically expands a short simulator
// response into Points raw samples when no true binary channel exists
// (simulation mode only).
func syntheticWaveformBytes(resp string, points, byteWidth int) []byte {
	if points <= 0 {
		points = 1
	}
	out := make([]byte, points*byteWidth)
	seed := byte(0)
	for _, c := range resp {
		seed += byte(c)
	}
	for i := range out {
		out[i] = seed
	}
	return out
}

package instrument

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pytestlab/internal/frame"
	"pytestlab/internal/profile"
	"pytestlab/internal/transport"
)

func scopeSpec(t *testing.T) *profile.Spec {
	t.Helper()
	spec, err := profile.Parse([]byte(`
model_id: SIM-SCOPE-1
device_type: oscilloscope
channels:
  - index: 1
simulation:
  scpi:
    - command: ':WAVeform:PREamble\?'
      response: "1,2,4,1e-6,0,0.01,0,128"
    - command: ':WAVeform:SOURce CHANnel1;:WAVeform:DATA\?'
      response: "SYN"
`))
	require.NoError(t, err)
	return spec
}

func newSimScope(t *testing.T) *Oscilloscope {
	t.Helper()
	sim := transport.NewSimulator(scopeSpec(t), 1, false, discardLogger())
	return NewOscilloscope(NewBase(scopeSpec(t), sim, "scope1", nil, "", discardLogger()))
}

func TestReadChannelsReturnsWaveformFrameWithDeclaredPointsUnderSimulation(t *testing.T) {
	o := newSimScope(t)

	res, err := o.ReadChannels(context.Background(), []int{1})
	require.NoError(t, err)
	require.Equal(t, frame.KindWaveform, res.Kind)
	require.NotNil(t, res.Waveform)
	assert.Equal(t, 4, res.Waveform.NumRows(), "preamble declares 4 points")
}

func TestReadChannelsRejectsUndeclaredChannel(t *testing.T) {
	o := newSimScope(t)

	_, err := o.ReadChannels(context.Background(), []int{9})
	assert.Error(t, err)
}

func TestReadChannelsRejectsEmptyIndexList(t *testing.T) {
	o := newSimScope(t)

	_, err := o.ReadChannels(context.Background(), nil)
	assert.Error(t, err)
}

func TestReadChannelsRejectsMissingPreambleRule(t *testing.T) {
	spec, err := profile.Parse([]byte(`
model_id: NO-PREAMBLE-SCOPE
device_type: oscilloscope
channels:
  - index: 1
`))
	require.NoError(t, err)
	sim := transport.NewSimulator(spec, 1, true, discardLogger())
	o := NewOscilloscope(NewBase(spec, sim, "scope1", nil, "", discardLogger()))

	_, err = o.ReadChannels(context.Background(), []int{1})
	assert.Error(t, err)
}

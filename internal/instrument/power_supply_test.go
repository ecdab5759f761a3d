package instrument

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPSUSetRejectsOverMaxVoltage(t *testing.T) {
	st := &stubTransport{}
	overlay := SafetyOverlay{1: {"voltage": Bound{Max: floatPtr(10)}}}
	b := NewBase(dmmSpec(t), st, "psu1", overlay, "", discardLogger())
	psu := NewPowerSupply(b)

	_, err := psu.Channel(1).Set(context.Background(), 15, 0.1)
	assert.Error(t, err)
	assert.Empty(t, st.writes)
}

func TestPSUSetSlewOnChainWritesExpectedCommands(t *testing.T) {
	st := &stubTransport{}
	b := NewBase(dmmSpec(t), st, "psu1", nil, "", discardLogger())
	psu := NewPowerSupply(b)

	ch := psu.Channel(1)
	_, err := ch.Set(context.Background(), 5.0, 0.1)
	require.NoError(t, err)
	_, err = ch.Slew(context.Background(), 1.0)
	require.NoError(t, err)
	_, err = ch.On(context.Background())
	require.NoError(t, err)

	require.Len(t, st.writes, 3)
	assert.Contains(t, st.writes[0], "VOLTage 5")
	assert.Contains(t, st.writes[1], "SLEW 1")
	assert.Equal(t, ":OUTPut1 ON", st.writes[2])
}

func TestPSUSlewRejectsUndeclaredChannel(t *testing.T) {
	st := &stubTransport{}
	b := NewBase(dmmSpec(t), st, "psu1", nil, "", discardLogger())
	psu := NewPowerSupply(b)

	_, err := psu.Channel(9).Slew(context.Background(), 1.0)
	assert.Error(t, err)
	assert.Empty(t, st.writes)
}

func TestPSUMeasureVoltageParsesScalarResponse(t *testing.T) {
	st := &stubTransport{queryResp: map[string]string{":MEASure:VOLTage:DC? (@1)": "5.05"}}
	b := NewBase(dmmSpec(t), st, "psu1", nil, "", discardLogger())
	psu := NewPowerSupply(b)

	res, err := psu.Channel(1).MeasureVoltage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.05, res.Scalar.Value)
	assert.Equal(t, "V", res.Units)
}

package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pytestlab/internal/profile"
)

func psuSpec(t *testing.T) *profile.Spec {
	t.Helper()
	spec, err := profile.Parse([]byte(`
model_id: SIM-PSU-1
device_type: psu
channels:
  - index: 1
simulation:
  state:
    voltage: 0
  scpi:
    - command: ':SOURce1:VOLTage (?P<v>[\d.]+)'
      action: set
      target: voltage
      value: "float(groups.v)"
    - command: ':MEASure:VOLTage:DC\? \(@1\)'
      response_expr: "state.voltage"
`))
	require.NoError(t, err)
	return spec
}

func TestSimulatorStatefulRoundTrip(t *testing.T) {
	sim := NewSimulator(psuSpec(t), 1, false, discardLogger())
	ctx := context.Background()

	require.NoError(t, sim.Write(ctx, ":SOURce1:VOLTage 5.5"))
	resp, err := sim.Query(ctx, ":MEASure:VOLTage:DC? (@1)")
	require.NoError(t, err)
	assert.Equal(t, "5.5", resp)
}

func TestSimulatorIdentityIsSynthesized(t *testing.T) {
	sim := NewSimulator(psuSpec(t), 1, false, discardLogger())
	idn, err := sim.Query(context.Background(), "*IDN?")
	require.NoError(t, err)
	assert.Contains(t, idn, "SIM-PSU-1")
}

func TestSimulatorStateIsIndependentPerInstance(t *testing.T) {
	spec := psuSpec(t)
	a := NewSimulator(spec, 1, false, discardLogger())
	b := NewSimulator(spec, 1, false, discardLogger())

	require.NoError(t, a.Write(context.Background(), ":SOURce1:VOLTage 9"))
	assert.Equal(t, 0.0, b.State()["voltage"])
	assert.Equal(t, 9.0, a.State()["voltage"])
}

func TestSimulatorStrictQueryFailsWithoutMatchingRule(t *testing.T) {
	sim := NewSimulator(psuSpec(t), 1, true, discardLogger())
	_, err := sim.Query(context.Background(), ":UNKnown:COMmand?")
	assert.Error(t, err)
}

func TestSimulatorLenientQueryReturnsEmpty(t *testing.T) {
	sim := NewSimulator(psuSpec(t), 1, false, discardLogger())
	resp, err := sim.Query(context.Background(), ":UNKnown:COMmand?")
	require.NoError(t, err)
	assert.Equal(t, "", resp)
}

func TestSimulatorCloseRejectsFurtherCalls(t *testing.T) {
	sim := NewSimulator(psuSpec(t), 1, false, discardLogger())
	require.NoError(t, sim.Close())
	err := sim.Write(context.Background(), ":SOURce1:VOLTage 1")
	assert.Error(t, err)
}

// A literal response containing operator characters (the error-queue
// "no error" sentinel, a signed preamble field, a "(@1)" channel list)
// must come back unevaluated: response, not response_expr, is what
// marks a rule literal.
func errorSentinelSpec(t *testing.T) *profile.Spec {
	t.Helper()
	spec, err := profile.Parse([]byte(`
model_id: SIM-ERRQ-1
device_type: dmm
channels:
  - index: 1
simulation:
  scpi:
    - command: ':SYSTem:ERRor\?'
      response: '+0,"No error"'
    - command: 'MEAS:VOLT:DC\? \(@1\)'
      response: "-4.2,(ranged)"
`))
	require.NoError(t, err)
	return spec
}

func TestSimulatorLiteralResponseWithOperatorCharactersIsReturnedVerbatim(t *testing.T) {
	sim := NewSimulator(errorSentinelSpec(t), 1, false, discardLogger())

	resp, err := sim.Query(context.Background(), ":SYSTem:ERRor?")
	require.NoError(t, err)
	assert.Equal(t, `+0,"No error"`, resp)

	resp, err = sim.Query(context.Background(), "MEAS:VOLT:DC? (@1)")
	require.NoError(t, err)
	assert.Equal(t, "-4.2,(ranged)", resp)
}

func TestSimulatorErrorSentinelLiteralPassesThePostWriteSweep(t *testing.T) {
	sim := NewSimulator(errorSentinelSpec(t), 1, false, discardLogger())
	errs, err := sim.ClearErrors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestSimulatorClearErrorsDrainsUntilCappedWhenQueueNeverEmpties(t *testing.T) {
	spec, err := profile.Parse([]byte(`
model_id: SIM-STUCK-QUEUE-1
device_type: dmm
channels:
  - index: 1
simulation:
  scpi:
    - command: ':SYSTem:ERRor\?'
      response: '-222,"Data out of range"'
`))
	require.NoError(t, err)
	sim := NewSimulator(spec, 1, false, discardLogger())

	errs, err := sim.ClearErrors(context.Background())
	require.NoError(t, err)
	assert.Len(t, errs, maxErrorDrain, "ClearErrors must loop, not read the queue once")
}

package session

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/instrument"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

type fakeDriver struct{}

func (fakeDriver) Connect(ctx context.Context, suppressIDN bool) error { return nil }
func (fakeDriver) ID() string                                         { return "fake" }
func (fakeDriver) Close() error                                       { return nil }

func TestWithInstrumentRunsFnAndErrorsOnUnknownAlias(t *testing.T) {
	s := New(map[string]instrument.Driver{"a": fakeDriver{}}, discardLogger())

	var ranInside bool
	err := s.WithInstrument("a", func(d instrument.Driver) error {
		ranInside = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ranInside)

	err = s.WithInstrument("missing", func(d instrument.Driver) error { return nil })
	assert.Error(t, err)
}

func TestRunSweepProducesOneRowPerCombinationWithParamsAndMeasurements(t *testing.T) {
	s := New(nil, discardLogger())
	params := []Parameter{
		{Name: "voltage", Values: []any{1.0, 2.0}, Unit: "V"},
		{Name: "freq", Values: []any{100.0}, Unit: "Hz"},
	}
	acqs := []NamedAcquisition{
		{Name: "meas", Fn: func(ctx *AcquisitionContext) (map[string]any, error) {
			return map[string]any{"current": ctx.Params["voltage"].(float64) / 10}, nil
		}},
	}
	result, err := s.RunSweep(params, acqs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Tabular.NumRows())

	row0 := result.Tabular.Row(0)
	assert.Equal(t, 1.0, row0["voltage"])
	assert.Equal(t, 0.1, row0["current"])
}

func TestRunSweepColumnOrderIsParamsThenMeasurements(t *testing.T) {
	s := New(nil, discardLogger())
	params := []Parameter{
		{Name: "voltage", Values: []any{1.0}, Unit: "V"},
		{Name: "delay", Values: []any{0.0}, Unit: "s"},
	}
	acqs := []NamedAcquisition{
		{Name: "meas", Fn: func(ctx *AcquisitionContext) (map[string]any, error) {
			return map[string]any{"measured_voltage": ctx.Params["voltage"].(float64)}, nil
		}},
	}
	result, err := s.RunSweep(params, acqs)
	require.NoError(t, err)
	assert.Equal(t, []string{"voltage", "delay", "measured_voltage"}, result.Tabular.Columns())
}

func TestRunSweepRejectsConflictingAcquisitionKeys(t *testing.T) {
	s := New(nil, discardLogger())
	params := []Parameter{{Name: "voltage", Values: []any{1.0}, Unit: "V"}}
	acqs := []NamedAcquisition{
		{Name: "a", Fn: func(ctx *AcquisitionContext) (map[string]any, error) {
			return map[string]any{"x": 1.0}, nil
		}},
		{Name: "b", Fn: func(ctx *AcquisitionContext) (map[string]any, error) {
			return map[string]any{"x": 2.0}, nil
		}},
	}
	_, err := s.RunSweep(params, acqs)
	require.Error(t, err)
	var conflict *pterrors.SessionError
	assert.ErrorAs(t, err, &conflict)
}

func TestRunSweepRecordsNullRowOnAcquisitionFailureRatherThanAborting(t *testing.T) {
	s := New(nil, discardLogger())
	params := []Parameter{{Name: "voltage", Values: []any{1.0}, Unit: "V"}}
	acqs := []NamedAcquisition{
		{Name: "bad", Fn: func(ctx *AcquisitionContext) (map[string]any, error) {
			return nil, assert.AnError
		}},
	}
	result, err := s.RunSweep(params, acqs)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tabular.NumRows())
}

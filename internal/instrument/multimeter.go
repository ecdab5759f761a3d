package instrument

import (
	"context"
	"fmt"

	"pytestlab/internal/frame"
)

// Multimeter is the DMM device-type driver.
type Multimeter struct {
	*Base
	activeRangeKey string
}

func NewMultimeter(b *Base) *Multimeter { return &Multimeter{Base: b} }

func (m *Multimeter) withAccuracy(value float64, unit string) *frame.Result {
	res := scalarResult(value, unit, m.Base)
	if acc, ok := m.Spec.Accuracy(m.activeRangeKey); ok {
		sigma := ApplyAccuracy(value, acc.PercentReading, acc.OffsetValue)
		res.Scalar.Sigma = &sigma
		res.Units = acc.Unit
	}
	return res
}

func (m *Multimeter) MeasureVoltageDC(ctx context.Context) (*frame.Result, error) {
	m.activeRangeKey = "voltage_dc"
	resp, err := m.Query(ctx, m.Template("dmm.measure.voltage_dc"))
	if err != nil {
		return nil, err
	}
	v, err := ParseScalar(resp)
	if err != nil {
		return nil, err
	}
	return m.withAccuracy(v, "V"), nil
}

func (m *Multimeter) MeasureVoltageAC(ctx context.Context) (*frame.Result, error) {
	m.activeRangeKey = "voltage_ac"
	resp, err := m.Query(ctx, m.Template("dmm.measure.voltage_ac"))
	if err != nil {
		return nil, err
	}
	v, err := ParseScalar(resp)
	if err != nil {
		return nil, err
	}
	return m.withAccuracy(v, "V"), nil
}

func (m *Multimeter) MeasureCurrentDC(ctx context.Context) (*frame.Result, error) {
	m.activeRangeKey = "current_dc"
	resp, err := m.Query(ctx, m.Template("dmm.measure.current_dc"))
	if err != nil {
		return nil, err
	}
	v, err := ParseScalar(resp)
	if err != nil {
		return nil, err
	}
	return m.withAccuracy(v, "A"), nil
}

// SetIntegrationTime configures the NPLC integration-time selector.
func (m *Multimeter) SetIntegrationTime(ctx context.Context, nplc float64) error {
	return m.Write(ctx, fmt.Sprintf(m.Template("dmm.integration_time"), nplc))
}

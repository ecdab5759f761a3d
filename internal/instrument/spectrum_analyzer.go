package instrument

import (
	"context"

	"pytestlab/internal/frame"
)

// SpectrumAnalyzer is the SA device-type driver. Its operation surface is
// intentionally thin relative to Oscilloscope/PowerSupply: SA, VNA, and
// PowerMeter mainly need to exist as distinct, non-interchangeable
// device types, so that cross-type operations are forbidden at the type
// level rather than checked at runtime.
type SpectrumAnalyzer struct{ *Base }

func NewSpectrumAnalyzer(b *Base) *SpectrumAnalyzer { return &SpectrumAnalyzer{Base: b} }

func (s *SpectrumAnalyzer) MeasurePeak(ctx context.Context) (*frame.Result, error) {
	resp, err := s.Query(ctx, ":CALCulate:MARKer1:Y?")
	if err != nil {
		return nil, err
	}
	v, err := ParseScalar(resp)
	if err != nil {
		return nil, err
	}
	return scalarResult(v, "dBm", s.Base), nil
}

// VectorNetworkAnalyzer is the VNA device-type driver.
type VectorNetworkAnalyzer struct{ *Base }

func NewVectorNetworkAnalyzer(b *Base) *VectorNetworkAnalyzer { return &VectorNetworkAnalyzer{Base: b} }

func (v *VectorNetworkAnalyzer) MeasureSParameter(ctx context.Context, param string) (*frame.Result, error) {
	resp, err := v.Query(ctx, ":CALCulate:DATA:SDATa?")
	if err != nil {
		return nil, err
	}
	mag, err := ParseScalar(resp)
	if err != nil {
		return nil, err
	}
	return scalarResult(mag, "dB", v.Base), nil
}

// PowerMeter is the power_meter device-type driver.
type PowerMeter struct{ *Base }

func NewPowerMeter(b *Base) *PowerMeter { return &PowerMeter{Base: b} }

func (p *PowerMeter) MeasurePower(ctx context.Context) (*frame.Result, error) {
	resp, err := p.Query(ctx, ":MEASure:POWer?")
	if err != nil {
		return nil, err
	}
	v, err := ParseScalar(resp)
	if err != nil {
		return nil, err
	}
	return scalarResult(v, "W", p.Base), nil
}

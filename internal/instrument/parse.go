package instrument

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pytestlab/internal/frame"
	pterrors "pytestlab/internal/errors"
)

// ParseScalar parses a bare numeric SCPI response.
func ParseScalar(resp string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, pterrors.NewTransportError(pterrors.Protocol, "parse-scalar", err)
	}
	return v, nil
}

// ParseCSV parses a comma-separated list of floats, the grammar most
// multi-value SCPI queries (preambles, multi-channel reads) use.
func ParseCSV(resp string) ([]float64, error) {
	parts := strings.Split(strings.TrimSpace(resp), ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, pterrors.NewTransportError(pterrors.Protocol, "parse-csv", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Preamble is the decoded :WAVeform:PREamble? response:
// format, type, points, xincrement, xorigin, yincrement, yorigin,
// yreference.
type Preamble struct {
	Format      int
	Type        int
	Points      int
	XIncrement  float64
	XOrigin     float64
	YIncrement  float64
	YOrigin     float64
	YReference  float64
}

// ParsePreamble parses the 8-field CSV preamble the oscilloscope driver
// needs to reconstruct a time-voltage sequence.
func ParsePreamble(resp string) (*Preamble, error) {
	fields, err := ParseCSV(resp)
	if err != nil {
		return nil, err
	}
	if len(fields) < 8 {
		return nil, pterrors.NewTransportError(pterrors.Protocol, "parse-preamble", fmt.Errorf("expected 8 fields, got %d", len(fields)))
	}
	return &Preamble{
		Format:     int(fields[0]),
		Type:       int(fields[1]),
		Points:     int(fields[2]),
		XIncrement: fields[3],
		XOrigin:    fields[4],
		YIncrement: fields[5],
		YOrigin:    fields[6],
		YReference: fields[7],
	}, nil
}

// DecodeWaveform reconstructs a time-voltage frame from a raw binary
// block plus its preamble, reading samples of byteWidth bytes each (1, or
// 2 big-endian). The preamble's Format field is not checked against
// byteWidth.
func DecodeWaveform(raw []byte, p *Preamble, byteWidth int) (*frame.Frame, error) {
	if byteWidth != 1 && byteWidth != 2 {
		return nil, fmt.Errorf("unsupported waveform byte width %d", byteWidth)
	}
	n := len(raw) / byteWidth
	f := frame.New()
	for i := 0; i < n; i++ {
		var raw16 int
		if byteWidth == 1 {
			raw16 = int(raw[i])
		} else {
			raw16 = int(binary.BigEndian.Uint16(raw[i*2 : i*2+2]))
		}
		t := p.XOrigin + float64(i)*p.XIncrement
		v := (float64(raw16) - p.YReference) * p.YIncrement + p.YOrigin
		f.AppendRow(map[string]any{"time": t, "voltage": v}, []string{"time", "voltage"}, map[string]string{"time": "s", "voltage": "V"})
	}
	return f, nil
}

// ApplyAccuracy attaches an uncertainty sigma to value from a
// percent-of-reading-plus-offset accuracy-table entry, if one applies.
func ApplyAccuracy(value float64, percentReading, offsetValue float64) float64 {
	return math.Abs(value)*percentReading/100.0 + offsetValue
}

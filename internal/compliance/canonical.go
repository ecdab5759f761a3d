// Package compliance implements the envelope: canonical hashing, ECDSA
// signing/verification, and an append-only audit log. The
// canonicalization is hand-rolled rather than JSON/gob because the
// contract demands a fixed field order and a canonical float format
// independent of any serialization library's own ordering guarantees.
package compliance

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"pytestlab/internal/frame"
)

// Canonicalize serializes a MeasurementResult plus the trace fingerprint
// captured since the previous envelope into the stable byte sequence
// signatures are computed over: fixed field order, canonical number
// format, UTF-8.
func Canonicalize(result *frame.Result, traceFingerprint []string) []byte {
	var buf bytes.Buffer

	writeField(&buf, "kind", string(result.Kind))
	writeField(&buf, "units", result.Units)
	writeField(&buf, "monotonic", canonicalFloat(result.Monotonic))
	writeField(&buf, "wall_clock", strconv.FormatInt(result.WallClock, 10))

	writeField(&buf, "provenance.actor", result.Provenance.Actor)
	writeField(&buf, "provenance.instrument_idn", result.Provenance.InstrumentIDN)
	writeField(&buf, "provenance.profile_hash", result.Provenance.ProfileHash)
	writeField(&buf, "provenance.command_trace_hash", result.Provenance.CommandTraceHash)

	switch result.Kind {
	case frame.KindScalar:
		if result.Scalar != nil {
			writeField(&buf, "value", canonicalFloat(result.Scalar.Value))
			if result.Scalar.Sigma != nil {
				writeField(&buf, "sigma", canonicalFloat(*result.Scalar.Sigma))
			}
		}
	case frame.KindWaveform:
		canonicalizeFrame(&buf, result.Waveform)
	case frame.KindTabular:
		canonicalizeFrame(&buf, result.Tabular)
	}

	trace := make([]string, len(traceFingerprint))
	copy(trace, traceFingerprint)
	sort.Strings(trace)
	for _, cmd := range trace {
		writeField(&buf, "trace", cmd)
	}

	return buf.Bytes()
}

func canonicalizeFrame(buf *bytes.Buffer, f *frame.Frame) {
	if f == nil {
		return
	}
	for _, name := range f.Columns() {
		col, _ := f.Column(name)
		writeField(buf, "column."+name+".unit", col.Unit)
		for i, v := range col.Data {
			writeField(buf, fmt.Sprintf("column.%s.%d", name, i), canonicalScalar(v))
		}
	}
}

func canonicalScalar(v any) string {
	switch x := v.(type) {
	case float64:
		return canonicalFloat(x)
	case frame.Scalar:
		return x.String()
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// canonicalFloat formats a float64 with a fixed, locale-independent
// representation so the same value always canonicalizes to the same
// bytes regardless of how it was originally computed.
func canonicalFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeField(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteByte('=')
	buf.WriteString(value)
	buf.WriteByte('\n')
}

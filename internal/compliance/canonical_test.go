package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pytestlab/internal/frame"
)

func sampleResult() *frame.Result {
	return &frame.Result{
		Kind:      frame.KindScalar,
		Scalar:    &frame.Scalar{Value: 3.3},
		Units:     "V",
		Monotonic: 1.25,
		WallClock: 1000,
		Provenance: frame.Provenance{
			Actor:         "op1",
			InstrumentIDN: "Fake,DMM,1",
		},
	}
}

func TestCanonicalizeIsDeterministicAcrossCalls(t *testing.T) {
	r := sampleResult()
	a := Canonicalize(r, []string{"B", "A"})
	b := Canonicalize(r, []string{"B", "A"})
	assert.Equal(t, a, b)
}

func TestCanonicalizeSortsTraceFingerprintRegardlessOfInputOrder(t *testing.T) {
	r := sampleResult()
	a := Canonicalize(r, []string{"Z", "A"})
	b := Canonicalize(r, []string{"A", "Z"})
	assert.Equal(t, a, b)
}

func TestCanonicalizeDiffersWhenValueChanges(t *testing.T) {
	a := Canonicalize(sampleResult(), nil)
	r2 := sampleResult()
	r2.Scalar.Value = 9.9
	b := Canonicalize(r2, nil)
	assert.NotEqual(t, a, b)
}

func TestCanonicalizeSnapshotSortsKeys(t *testing.T) {
	a := CanonicalizeSnapshot(map[string]string{"b": "2", "a": "1"})
	b := CanonicalizeSnapshot(map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
}

func TestCanonicalizeFrameCoversTabularResult(t *testing.T) {
	f := frame.New()
	f.AppendRow(map[string]any{"voltage": 1.5}, nil, map[string]string{"voltage": "V"})
	r := &frame.Result{Kind: frame.KindTabular, Tabular: f}
	out := Canonicalize(r, nil)
	assert.Contains(t, string(out), "column.voltage")
}

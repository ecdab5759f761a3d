package compliance

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"pytestlab/internal/frame"
)

// TestCanonicalizeMatchesGoldenFixture pins the exact byte layout
// signatures are computed over. Regenerate with `go test ./internal/compliance -update`
// after a deliberate change to Canonicalize's field order or formatting.
func TestCanonicalizeMatchesGoldenFixture(t *testing.T) {
	r := &frame.Result{
		Kind:   frame.KindScalar,
		Scalar: &frame.Scalar{Value: 3.3},
		Units:  "V",
		Provenance: frame.Provenance{
			Actor:         "golden-actor",
			InstrumentIDN: "GOLDEN,INSTR,1",
		},
	}
	out := Canonicalize(r, []string{"VOLT 1", "MEAS:VOLT?"})

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "scalar_canonicalization", out)
}

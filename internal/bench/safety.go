package bench

import (
	"fmt"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/instrument"
	"pytestlab/internal/profile"
)

// mergeSafety resolves the effective per-channel overlay an Instrument
// enforces: the bench's declared limits layered on top of the profile's
// safety schema, tightening only. The bench can never widen a profile's
// hard limit.
func mergeSafety(schema profile.SafetySchema, limits *SafetyLimits) (instrument.SafetyOverlay, error) {
	overlay := instrument.SafetyOverlay{}

	for ch, quantities := range schema.Channels {
		out := map[string]instrument.Bound{}
		for q, b := range quantities {
			out[q] = instrument.Bound{Max: b.Max, Min: b.Min}
		}
		overlay[ch] = out
	}

	if limits == nil {
		return overlay, nil
	}

	for ch, quantities := range limits.Channels {
		chOverlay, ok := overlay[ch]
		if !ok {
			chOverlay = map[string]instrument.Bound{}
		}
		for q, bound := range quantities {
			existing := chOverlay[q] // zero value (no bound either way) when absent
			merged := existing
			if bound.Max != nil {
				if existing.Max != nil && *bound.Max > *existing.Max {
					return nil, pterrors.NewConfigError("safety_limits",
						fmt.Errorf("channel %d %s max would widen profile hard limit %v", ch, q, *existing.Max))
				}
				merged.Max = bound.Max
			}
			if bound.Min != nil {
				if existing.Min != nil && *bound.Min < *existing.Min {
					return nil, pterrors.NewConfigError("safety_limits",
						fmt.Errorf("channel %d %s min would widen profile hard limit %v", ch, q, *existing.Min))
				}
				merged.Min = bound.Min
			}
			chOverlay[q] = merged
		}
		overlay[ch] = chOverlay
	}

	return overlay, nil
}

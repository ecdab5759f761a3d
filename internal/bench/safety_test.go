package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pytestlab/internal/profile"
)

func boundf(f float64) *float64 { return &f }

func TestMergeSafetyWithNoBenchLimitsPassesSchemaThrough(t *testing.T) {
	schema := profile.SafetySchema{Channels: map[int]map[string]profile.SafetyBound{
		1: {"voltage": {Max: boundf(10)}},
	}}
	overlay, err := mergeSafety(schema, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, *overlay[1]["voltage"].Max)
}

func TestMergeSafetyAllowsTighteningProfileLimit(t *testing.T) {
	schema := profile.SafetySchema{Channels: map[int]map[string]profile.SafetyBound{
		1: {"voltage": {Max: boundf(10)}},
	}}
	limits := &SafetyLimits{Channels: map[int]ChannelLimits{
		1: {"voltage": QuantityBound{Max: boundf(5)}},
	}}
	overlay, err := mergeSafety(schema, limits)
	require.NoError(t, err)
	assert.Equal(t, 5.0, *overlay[1]["voltage"].Max)
}

func TestMergeSafetyRejectsWideningProfileLimit(t *testing.T) {
	schema := profile.SafetySchema{Channels: map[int]map[string]profile.SafetyBound{
		1: {"voltage": {Max: boundf(10)}},
	}}
	limits := &SafetyLimits{Channels: map[int]ChannelLimits{
		1: {"voltage": QuantityBound{Max: boundf(20)}},
	}}
	_, err := mergeSafety(schema, limits)
	assert.Error(t, err)
}

func TestMergeSafetyLeavesUnspecifiedBoundFieldAtProfileValue(t *testing.T) {
	schema := profile.SafetySchema{Channels: map[int]map[string]profile.SafetyBound{
		1: {"voltage": {Max: boundf(10)}},
	}}
	limits := &SafetyLimits{Channels: map[int]ChannelLimits{
		1: {"voltage": QuantityBound{}},
	}}
	overlay, err := mergeSafety(schema, limits)
	require.NoError(t, err, "an absent bench field means inherit the profile's bound, not drop it")
	assert.Equal(t, 10.0, *overlay[1]["voltage"].Max)
}

func TestMergeSafetyTighteningOneFieldDoesNotRequireRestatingTheOther(t *testing.T) {
	schema := profile.SafetySchema{Channels: map[int]map[string]profile.SafetyBound{
		1: {"voltage": {Max: boundf(50), Min: boundf(-5)}},
	}}
	limits := &SafetyLimits{Channels: map[int]ChannelLimits{
		1: {"voltage": QuantityBound{Max: boundf(10)}},
	}}
	overlay, err := mergeSafety(schema, limits)
	require.NoError(t, err)
	assert.Equal(t, 10.0, *overlay[1]["voltage"].Max)
	assert.Equal(t, -5.0, *overlay[1]["voltage"].Min, "the untouched min must still come from the profile")
}

func TestMergeSafetyAllowsNewLimitOnChannelWithNoSchemaEntry(t *testing.T) {
	schema := profile.SafetySchema{}
	limits := &SafetyLimits{Channels: map[int]ChannelLimits{
		2: {"current": QuantityBound{Max: boundf(1)}},
	}}
	overlay, err := mergeSafety(schema, limits)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *overlay[2]["current"].Max)
}

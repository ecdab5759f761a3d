package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pterrors "pytestlab/internal/errors"
)

func sampleEntries() []LogEntry {
	resp := "Fake,1"
	return []LogEntry{
		{Type: "write", Command: "VOLT 5"},
		{Type: "query", Command: "*IDN?", Response: &resp},
	}
}

func TestReplayerFailsOnFirstDivergentCall(t *testing.T) {
	r := NewReplayer("psu1", sampleEntries(), false, discardLogger())
	ctx := context.Background()

	err := r.Write(ctx, "VOLT 9")
	var mismatch *pterrors.ReplayMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 0, mismatch.Cursor)
}

func TestReplayerExhaustionAfterLastEntry(t *testing.T) {
	r := NewReplayer("psu1", sampleEntries(), false, discardLogger())
	ctx := context.Background()

	require.NoError(t, r.Write(ctx, "VOLT 5"))
	_, err := r.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.True(t, r.Exhausted())

	_, err = r.Query(ctx, "*IDN?")
	var exhausted *pterrors.ReplayExhausted
	assert.ErrorAs(t, err, &exhausted)
}

func TestReplayerLeftoverIsLenientByDefault(t *testing.T) {
	r := NewReplayer("psu1", sampleEntries(), false, discardLogger())
	require.NoError(t, r.ReportLeftover())
}

func TestReplayerLeftoverIsFatalWhenStrict(t *testing.T) {
	r := NewReplayer("psu1", sampleEntries(), true, discardLogger())
	err := r.ReportLeftover()
	var mismatch *pterrors.ReplayMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestReplayerLeftoverIsEmptyOnceFullyConsumed(t *testing.T) {
	r := NewReplayer("psu1", sampleEntries(), true, discardLogger())
	ctx := context.Background()
	require.NoError(t, r.Write(ctx, "VOLT 5"))
	_, err := r.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.NoError(t, r.ReportLeftover())
}

func TestReplayerQueryWithoutRecordedResponseErrors(t *testing.T) {
	entries := []LogEntry{{Type: "query", Command: "*IDN?", Response: nil}}
	r := NewReplayer("psu1", entries, false, discardLogger())
	_, err := r.Query(context.Background(), "*IDN?")
	assert.Error(t, err)
}

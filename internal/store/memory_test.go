package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutAssignsIDWhenEmpty(t *testing.T) {
	m := NewMemory()
	id, err := m.Put(context.Background(), "", "title", "desc", []byte("blob"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := m.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), got)
}

func TestMemoryPutHonorsCallerSuppliedID(t *testing.T) {
	m := NewMemory()
	id, err := m.Put(context.Background(), "explicit-1", "t", "d", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "explicit-1", id)
}

func TestMemoryGetMissingIDErrors(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "nope")
	assert.Error(t, err)
}

func TestMemoryPutEnvelopeRequiresExistingRecord(t *testing.T) {
	m := NewMemory()
	err := m.PutEnvelope(context.Background(), "nope", []byte("sig"))
	assert.Error(t, err)
}

func TestMemoryPutEnvelopeThenGetEnvelopeRoundTrips(t *testing.T) {
	m := NewMemory()
	id, err := m.Put(context.Background(), "", "t", "d", []byte("blob"))
	require.NoError(t, err)

	require.NoError(t, m.PutEnvelope(context.Background(), id, []byte("sig-bytes")))

	env, err := m.GetEnvelope(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("sig-bytes"), env)
}

func TestMemoryGetEnvelopeErrorsWhenNeverAttached(t *testing.T) {
	m := NewMemory()
	id, err := m.Put(context.Background(), "", "t", "d", []byte("blob"))
	require.NoError(t, err)

	_, err = m.GetEnvelope(context.Background(), id)
	assert.Error(t, err)
}

func TestMemorySearchIsCaseInsensitiveOverTitleAndDescription(t *testing.T) {
	m := NewMemory()
	_, err := m.Put(context.Background(), "", "Power Supply Sweep", "ramps voltage 0-5V", []byte{})
	require.NoError(t, err)
	_, err = m.Put(context.Background(), "", "Unrelated", "nothing to do with it", []byte{})
	require.NoError(t, err)

	hits, err := m.Search(context.Background(), "SWEEP")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Power Supply Sweep", hits[0].Title)
}

func TestMemoryCloseIsANoOp(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Close())
}

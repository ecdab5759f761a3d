package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	pterrors "pytestlab/internal/errors"
)

type memoryRecord struct {
	title       string
	description string
	blob        []byte
	envelope    []byte
}

// Memory is an in-process Store, used by tests and by the `store`
// command's memory backend, which has nowhere durable to persist to.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*memoryRecord)}
}

func (m *Memory) Put(ctx context.Context, id, title, description string, blob []byte) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		rec = &memoryRecord{}
		m.records[id] = rec
	}
	rec.title = title
	rec.description = description
	rec.blob = blob
	return id, nil
}

func (m *Memory) PutEnvelope(ctx context.Context, id string, envelope []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return pterrors.NewConfigError("store", fmt.Errorf("no record %q to attach envelope to", id))
	}
	rec.envelope = envelope
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, pterrors.NewConfigError("store", fmt.Errorf("no record %q", id))
	}
	return rec.blob, nil
}

func (m *Memory) GetEnvelope(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok || rec.envelope == nil {
		return nil, pterrors.NewConfigError("store", fmt.Errorf("no envelope for %q", id))
	}
	return rec.envelope, nil
}

// Search does a case-insensitive substring match over title/description,
// the simplest full-text contract that avoids pulling in a dedicated
// search engine just for an in-memory backend.
func (m *Memory) Search(ctx context.Context, query string) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []Hit
	for id, rec := range m.records {
		if containsFold(rec.title, query) || containsFold(rec.description, query) {
			hits = append(hits, Hit{ID: id, Title: rec.title, Description: rec.description})
		}
	}
	return hits, nil
}

func (m *Memory) Close() error { return nil }

// Package store implements the external measurement store's client-side
// contract: put(id?, blob) -> id, get(id) -> blob,
// search(query_string) -> list<{id, title, description}>. This is the
// thin adapter layer `pytestlabctl store` calls into, with interchangeable
// backends behind one narrow interface.
package store

import (
	"context"
	"strings"
)

// Hit is one search result.
type Hit struct {
	ID          string
	Title       string
	Description string
}

// Store is the contract every backend satisfies. Envelopes are stored
// side-by-side with results under an adjacent key, which is
// why Put/PutEnvelope and Get/GetEnvelope are split rather than folded
// into one blob.
type Store interface {
	Put(ctx context.Context, id, title, description string, blob []byte) (string, error)
	PutEnvelope(ctx context.Context, id string, envelope []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	GetEnvelope(ctx context.Context, id string) ([]byte, error)
	Search(ctx context.Context, query string) ([]Hit, error)
	Close() error
}

// containsFold is the case-insensitive substring test every backend's
// best-effort Search uses.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

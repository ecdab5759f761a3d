// Package transport implements the byte-level write/query/read contract
// and its four variants: Hardware, Simulator, Recorder, and Replayer.
// Every Transport call is serialized per session: one outstanding call
// per session, each driving one net.Conn (or equivalent) per goroutine.
package transport

import (
	"context"
	"time"
)

// Transport is the capability set {write, query, read_raw, clear_errors,
// close} every variant implements identically.
type Transport interface {
	// Connect establishes the underlying session. Must precede any I/O.
	Connect(ctx context.Context) error
	// Write is fire-and-forget; it returns once the bytes are accepted.
	Write(ctx context.Context, cmd string) error
	// Query writes cmd and returns the response, stripped of line
	// terminators.
	Query(ctx context.Context, cmd string) (string, error)
	// ReadRaw reads a binary block honoring the IEEE-488.2 block-header
	// convention #<d><len><bytes> when n <= 0, or exactly n bytes
	// otherwise.
	ReadRaw(ctx context.Context, n int) ([]byte, error)
	// ClearErrors drains the instrument's error queue via
	// :SYSTem:ERRor? until the "no error" sentinel.
	ClearErrors(ctx context.Context) ([]string, error)
	// Close is idempotent.
	Close() error
	// Identity returns the device idn or simulator tag recorded at
	// Connect time.
	Identity() string
}

// NoErrorSentinel is the instrument's "no error" response convention.
const NoErrorSentinel = `+0,"No error"`

// Options configures timeouts shared by all Transport variants.
type Options struct {
	QueryTimeout   time.Duration
	ConnectTimeout time.Duration
}

// DefaultOptions returns a configurable per-session query timeout
// defaulting to 5s and a per-connect timeout defaulting to 10s.
func DefaultOptions() Options {
	return Options{QueryTimeout: 5 * time.Second, ConnectTimeout: 10 * time.Second}
}

// BinarySource reports whether t answers ReadRaw with a true IEEE-488.2
// binary block. Only Hardware does; Simulator has no wire bytes to block
// off, and Replayer answers a waveform read through the recorded Query
// entry instead (see Replayer.ReadRaw). Callers that need a binary block
// use this to pick write+ReadRaw over a Query fallback instead of
// discovering the distinction from a ReadRaw error.
func BinarySource(t Transport) bool {
	switch v := t.(type) {
	case *Hardware:
		return true
	case *Recorder:
		return BinarySource(v.Inner())
	default:
		return false
	}
}

package transport

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	pterrors "pytestlab/internal/errors"
)

// Recorder wraps any other Transport and appends a log entry for every
// Write and every successful Query, without changing the underlying
// transport's own behavior. Connect, ReadRaw, ClearErrors and failed
// queries pass through to the inner transport unlogged.
type Recorder struct {
	inner       Transport
	profileRef  string
	alias       string
	log         *logrus.Logger
	mu          sync.Mutex
	entries     []LogEntry
	start       time.Time
	outputPath  string
}

// NewRecorder wraps inner, tagging entries with profileRef/alias so the
// resulting session document can be replayed against the same profile.
func NewRecorder(inner Transport, profileRef, alias, outputPath string, log *logrus.Logger) *Recorder {
	return &Recorder{inner: inner, profileRef: profileRef, alias: alias, outputPath: outputPath, log: log, start: time.Now()}
}

func (r *Recorder) Connect(ctx context.Context) error { return r.inner.Connect(ctx) }

func (r *Recorder) Write(ctx context.Context, cmd string) error {
	err := r.inner.Write(ctx, cmd)
	r.append(LogEntry{Type: "write", Command: cmd, Timestamp: r.elapsed()})
	return err
}

func (r *Recorder) Query(ctx context.Context, cmd string) (string, error) {
	resp, err := r.inner.Query(ctx, cmd)
	if err == nil {
		respCopy := resp
		r.append(LogEntry{Type: "query", Command: cmd, Response: &respCopy, Timestamp: r.elapsed()})
	}
	return resp, err
}

func (r *Recorder) ReadRaw(ctx context.Context, n int) ([]byte, error) {
	return r.inner.ReadRaw(ctx, n)
}

// Inner exposes the wrapped transport, used by BinarySource to see past
// the recording wrapper to the transport actually driving I/O.
func (r *Recorder) Inner() Transport { return r.inner }

func (r *Recorder) ClearErrors(ctx context.Context) ([]string, error) {
	return r.inner.ClearErrors(ctx)
}

func (r *Recorder) Close() error {
	err := r.inner.Close()
	if writeErr := r.flush(); writeErr != nil {
		r.log.WithError(writeErr).Warn("failed to flush session recording")
	}
	return err
}

func (r *Recorder) Identity() string { return r.inner.Identity() }

func (r *Recorder) append(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *Recorder) elapsed() float64 { return time.Since(r.start).Seconds() }

// flush serializes the log plus the profile reference and alias into a
// session document.
func (r *Recorder) flush() error {
	if r.outputPath == "" {
		return nil
	}
	r.mu.Lock()
	doc := SessionDocument{r.alias: &AliasLog{Profile: r.profileRef, Log: r.entries}}
	r.mu.Unlock()

	out, err := yaml.Marshal(doc)
	if err != nil {
		return pterrors.NewConfigError("marshal session document", err)
	}
	return os.WriteFile(r.outputPath, out, 0o644)
}

// Entries exposes the in-memory log, used by Bench.FlushRecording to
// merge multiple instruments' recordings into one document.
func (r *Recorder) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

package transport

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
)

// Replayer is loaded from a session document and keeps a cursor into the
// log, enforcing strict in-order replay: the first divergent call fails
// with ReplayMismatchError and produces no side effect past that point.
type Replayer struct {
	alias        string
	entries      []LogEntry
	mu           sync.Mutex
	cursor       int
	log          *logrus.Logger
	fatalLeftover bool
	idn          string
}

// NewReplayer builds a Replayer over one alias's recorded log.
func NewReplayer(alias string, entries []LogEntry, fatalLeftover bool, log *logrus.Logger) *Replayer {
	return &Replayer{alias: alias, entries: entries, fatalLeftover: fatalLeftover, log: log, idn: "Replayed," + alias}
}

func (r *Replayer) Connect(ctx context.Context) error { return nil }

func (r *Replayer) Write(ctx context.Context, cmd string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.nextLocked("write", cmd)
	return err
}

func (r *Replayer) Query(ctx context.Context, cmd string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, err := r.nextLocked("query", cmd)
	if err != nil {
		return "", err
	}
	if entry.Response == nil {
		return "", pterrors.NewTransportError(pterrors.Protocol, "query", nil)
	}
	return *entry.Response, nil
}

// nextLocked advances the cursor exactly one step, verifying byte-for-byte
// that type and command match the next recorded entry.
func (r *Replayer) nextLocked(typ, cmd string) (*LogEntry, error) {
	if r.cursor >= len(r.entries) {
		return nil, &pterrors.ReplayExhausted{Cursor: r.cursor}
	}
	entry := &r.entries[r.cursor]
	if entry.Type != typ || entry.Command != cmd {
		return nil, &pterrors.ReplayMismatchError{
			Cursor:   r.cursor,
			Expected: entry.Type + " " + entry.Command,
			Actual:   typ + " " + cmd,
		}
	}
	r.cursor++
	return entry, nil
}

func (r *Replayer) ReadRaw(ctx context.Context, n int) ([]byte, error) {
	// Binary blocks are replayed through Query in this implementation: the
	// recorded response for the preceding query already carries the
	// encoded block, so ReadRaw is never itself a distinct log entry.
	return nil, pterrors.NewTransportError(pterrors.Protocol, "read_raw", nil)
}

// ClearErrors walks forward until the expected "no error" sentinel
// without advancing past unrelated commands: it only consumes entries
// that are themselves error-queue queries.
func (r *Replayer) ClearErrors(ctx context.Context) ([]string, error) {
	var errs []string
	for {
		r.mu.Lock()
		if r.cursor >= len(r.entries) || r.entries[r.cursor].Command != ":SYSTem:ERRor?" {
			r.mu.Unlock()
			return errs, nil
		}
		r.mu.Unlock()

		resp, err := r.Query(ctx, ":SYSTem:ERRor?")
		if err != nil {
			return errs, err
		}
		if resp == NoErrorSentinel {
			return errs, nil
		}
		errs = append(errs, resp)
	}
}

func (r *Replayer) Close() error { return nil }

func (r *Replayer) Identity() string { return r.idn }

// Exhausted reports whether every recorded entry has been consumed.
func (r *Replayer) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor >= len(r.entries)
}

// Leftover reports unconsumed trailing entries; by default a warning is
// logged (configurable to fatal via fatalLeftover).
func (r *Replayer) Leftover() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.entries) {
		return nil
	}
	return r.entries[r.cursor:]
}

// ReportLeftover logs or errors on trailing unconsumed entries, per the
// fatalLeftover configuration.
func (r *Replayer) ReportLeftover() error {
	leftover := r.Leftover()
	if len(leftover) == 0 {
		return nil
	}
	if r.fatalLeftover {
		return &pterrors.ReplayMismatchError{Cursor: len(r.entries) - len(leftover), Expected: "end of script", Actual: leftover[0].Type + " " + leftover[0].Command}
	}
	r.log.WithFields(logrus.Fields{"alias": r.alias, "remaining": len(leftover)}).Warn("session log has unconsumed trailing entries")
	return nil
}

package compliance

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	pterrors "pytestlab/internal/errors"
)

// AuditLog is the append-only local log of envelope activity: actor,
// action, envelope_id, and a monotonic plus wall-clock timestamp per
// entry. It is backed by modernc.org/sqlite, pure Go with no cgo, the
// same constraint that ruled out mattn/go-sqlite3 elsewhere in this
// module. Lifecycle is opened on first envelope, flushed on process
// exit: ensureOpenLocked is safe to call repeatedly and only does work
// the first time.
type AuditLog struct {
	path  string
	mu    sync.Mutex
	db    *sql.DB
	start time.Time
}

// NewAuditLog builds an unopened log; the underlying sqlite file is not
// created until the first Record call.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path, start: time.Now()}
}

func (a *AuditLog) ensureOpenLocked() error {
	if a.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", a.path)
	if err != nil {
		return pterrors.NewComplianceError(pterrors.AuditWriteFailed, err)
	}
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	envelope_id TEXT NOT NULL,
	monotonic_s REAL NOT NULL,
	wall_clock_ns INTEGER NOT NULL
)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return pterrors.NewComplianceError(pterrors.AuditWriteFailed, err)
	}
	a.db = db
	return nil
}

// Record appends one entry. Failures are returned to the caller, who
// should log and continue rather than fail the measurement over them.
func (a *AuditLog) Record(actor, action, envelopeID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureOpenLocked(); err != nil {
		return err
	}
	now := time.Now()
	_, err := a.db.Exec(
		`INSERT INTO audit_log (actor, action, envelope_id, monotonic_s, wall_clock_ns) VALUES (?, ?, ?, ?, ?)`,
		actor, action, envelopeID, now.Sub(a.start).Seconds(), now.UnixNano(),
	)
	if err != nil {
		return pterrors.NewComplianceError(pterrors.AuditWriteFailed, fmt.Errorf("insert audit entry: %w", err))
	}
	return nil
}

// Flush closes the underlying database handle, the "flushed on process
// exit" half of the lifecycle. Idempotent.
func (a *AuditLog) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

package compliance

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditLogRecordsAndFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log := NewAuditLog(path)

	require.NoError(t, log.Record("op1", "sign", "env-1"))
	require.NoError(t, log.Record("op1", "verify", "env-1"))
	require.NoError(t, log.Flush())
}

func TestAuditLogFlushIsIdempotentWhenNeverOpened(t *testing.T) {
	log := NewAuditLog(filepath.Join(t.TempDir(), "unused.db"))
	require.NoError(t, log.Flush())
	require.NoError(t, log.Flush())
}

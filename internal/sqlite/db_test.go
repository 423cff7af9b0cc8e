package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	for _, table := range []string{"simulations", "events"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	// Re-running on an existing schema is a no-op
	require.NoError(t, db.RunMigrations())
}

// TestStatusConstraint verifies that unknown statuses are rejected
func TestStatusConstraint(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.ExecContext(context.Background(),
		`INSERT INTO simulations (id, name, source_path, status, created_at, updated_at)
		 VALUES ('s1', 'n', '/in/n.csv', 'DONE', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.Error(t, err, "should fail with invalid status")
}

// TestFileDatabaseSurvivesReopen verifies that catalog rows persist on disk
func TestFileDatabaseSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	_, err = db.ExecContext(ctx,
		`INSERT INTO simulations (id, name, source_path, status, created_at, updated_at)
		 VALUES ('s1', 'n', '/in/n.csv', 'PENDING', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM simulations").Scan(&count))
	require.Equal(t, 1, count)
}

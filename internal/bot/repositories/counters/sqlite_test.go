package counters

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE counters (name TEXT PRIMARY KEY, value INTEGER NOT NULL DEFAULT 0);`)
	require.NoError(t, err)

	return db
}

func TestIncrementAndRead_SQLite(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	// absent counter reads as zero
	got, err := r.Read(ctx, "codes_sent")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	// first increment creates the row
	require.NoError(t, r.Increment(ctx, "codes_sent"))
	require.NoError(t, r.Increment(ctx, "codes_sent"))
	require.NoError(t, r.Increment(ctx, "codes_sent"))

	got, err = r.Read(ctx, "codes_sent")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/bans"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/counters"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/credentials"
	"github.com/dmitrijs2005/sessionvault/internal/dbx"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager backs the store with a single-file sqlite database,
// matching the layout the postgres migrations produce.
type SQLiteRepositoryManager struct {
}

func NewSQLiteRepositoryManager() RepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Bans(db dbx.DBTX) bans.Repository {
	return bans.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Counters(db dbx.DBTX) counters.Repository {
	return counters.NewSQLiteRepository(db)
}

// RunMigrations creates the schema if it is absent. sqlite needs its own DDL
// (no TIMESTAMPTZ / now()), so the goose files are not reused here.
func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			user_id INTEGER NOT NULL,
			phone TEXT NOT NULL,
			enc_password TEXT NOT NULL,
			enc_session TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, phone)
		)`,
		`CREATE TABLE IF NOT EXISTS bans (
			user_id INTEGER PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0
		)`,
		`INSERT INTO counters (name, value) VALUES ('codes_sent', 0)
			ON CONFLICT(name) DO NOTHING`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	return nil
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sessionvault/internal/bot/migrations"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/bans"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/counters"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/credentials"
	"github.com/dmitrijs2005/sessionvault/internal/dbx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Bans(db dbx.DBTX) bans.Repository {
	return bans.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Counters(db dbx.DBTX) counters.Repository {
	return counters.NewPostgresRepository(db)
}

// RunMigrations sets up goose with the embedded migrations and runs them.
// Migrations are idempotent, so repeated startups are safe.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}

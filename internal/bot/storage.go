package bot

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sessionvault/internal/bot/models"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/bans"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/counters"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/credentials"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/sessionvault/internal/dbx"
)

// Storage owns the database handle and hands out repositories bound to it.
// It is also the durable side of the login flow: PutCredential and
// IncrementCounter satisfy login.Store and commit before returning.
type Storage struct {
	db      *sql.DB
	manager repomanager.RepositoryManager
}

// OpenStorage opens the database named by dsn and initializes its schema.
// A "postgres://" or "postgresql://" DSN selects the pgx backend; anything
// else is treated as an SQLite file path.
func OpenStorage(ctx context.Context, dsn string) (*Storage, error) {
	var (
		driver  string
		manager repomanager.RepositoryManager
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
		manager = repomanager.NewPostgresRepositoryManager()
	} else {
		driver = "sqlite"
		manager = repomanager.NewSQLiteRepositoryManager()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := manager.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Storage{db: db, manager: manager}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Credentials() credentials.Repository {
	return s.manager.Credentials(s.db)
}

func (s *Storage) Bans() bans.Repository {
	return s.manager.Bans(s.db)
}

func (s *Storage) Counters() counters.Repository {
	return s.manager.Counters(s.db)
}

// PutCredential upserts the credential inside a transaction.
func (s *Storage) PutCredential(ctx context.Context, cred *models.Credential) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.manager.Credentials(tx).Upsert(ctx, cred)
	})
}

func (s *Storage) IncrementCounter(ctx context.Context, name string) error {
	return s.manager.Counters(s.db).Increment(ctx, name)
}

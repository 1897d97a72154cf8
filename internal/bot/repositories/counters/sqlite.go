package counters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sessionvault/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Increment(ctx context.Context, name string) error {
	query := `insert into counters (name, value) values (?, 1)
			on conflict(name) do update set value = value + 1`

	if _, err := r.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Read(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx, `select value from counters where name = ?`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return value, nil
}

package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sessionvault/internal/bot/models"
	"github.com/dmitrijs2005/sessionvault/internal/common"
	"github.com/dmitrijs2005/sessionvault/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	query := `INSERT INTO credentials (user_id, phone, enc_password, enc_session, updated_at)
			values (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(user_id, phone) DO UPDATE SET
				enc_password = excluded.enc_password,
				enc_session = excluded.enc_session,
				updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query,
		cred.UserID, cred.Phone, cred.EncPassword, cred.EncSession)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Has(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`select 1 from credentials where user_id = ? limit 1`, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check credentials: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) FindByPhone(ctx context.Context, phone string) ([]models.Credential, error) {
	return r.list(ctx,
		`select user_id, phone, enc_password, enc_session from credentials where phone = ?`, phone)
}

func (r *SQLiteRepository) FindByUserID(ctx context.Context, userID int64) ([]models.Credential, error) {
	return r.list(ctx,
		`select user_id, phone, enc_password, enc_session from credentials where user_id = ?`, userID)
}

func (r *SQLiteRepository) LatestByUserID(ctx context.Context, userID int64) (*models.Credential, error) {
	query := `select user_id, phone, enc_password, enc_session from credentials
			where user_id = ?
			order by updated_at desc, rowid desc
			limit 1`

	cred := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cred.UserID, &cred.Phone, &cred.EncPassword, &cred.EncSession)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select credential: %w", err)
	}
	return cred, nil
}

func (r *SQLiteRepository) ListDistinctUsers(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`select distinct user_id from credentials order by user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) CountDistinctUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`select count(distinct user_id) from credentials`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, arg any) ([]models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to select credentials: %w", err)
	}
	defer rows.Close()

	var result []models.Credential
	for rows.Next() {
		var item models.Credential
		if err := rows.Scan(&item.UserID, &item.Phone, &item.EncPassword, &item.EncSession); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

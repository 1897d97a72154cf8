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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	query :=
		`INSERT INTO credentials (user_id, phone, enc_password, enc_session, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id, phone) DO UPDATE SET
		     enc_password = EXCLUDED.enc_password,
		     enc_session = EXCLUDED.enc_session,
		     updated_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query,
		cred.UserID, cred.Phone, cred.EncPassword, cred.EncSession); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Has(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT 1 FROM credentials WHERE user_id = $1 LIMIT 1`

	var one int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return true, nil
}

func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) ([]models.Credential, error) {
	query :=
		`SELECT user_id, phone, enc_password, enc_session FROM credentials
		 WHERE phone = $1
		 `
	return r.list(ctx, query, phone)
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID int64) ([]models.Credential, error) {
	query :=
		`SELECT user_id, phone, enc_password, enc_session FROM credentials
		 WHERE user_id = $1
		 `
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) LatestByUserID(ctx context.Context, userID int64) (*models.Credential, error) {
	query :=
		`SELECT user_id, phone, enc_password, enc_session FROM credentials
		 WHERE user_id = $1
		 ORDER BY updated_at DESC
		 LIMIT 1
		 `

	cred := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cred.UserID, &cred.Phone, &cred.EncPassword, &cred.EncSession)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cred, nil
}

func (r *PostgresRepository) ListDistinctUsers(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM credentials ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
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

func (r *PostgresRepository) CountDistinctUsers(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(DISTINCT user_id) FROM credentials`

	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]models.Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
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

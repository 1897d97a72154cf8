package credentials

import (
	"context"

	"github.com/dmitrijs2005/sessionvault/internal/bot/models"
)

// Repository stores one encrypted credential per (user, phone) pair.
// Upsert overwrites any prior credential for the pair, so a re-login for the
// same phone supersedes the old session instead of accumulating duplicates.
type Repository interface {
	Upsert(ctx context.Context, cred *models.Credential) error
	Has(ctx context.Context, userID int64) (bool, error)
	FindByPhone(ctx context.Context, phone string) ([]models.Credential, error)
	FindByUserID(ctx context.Context, userID int64) ([]models.Credential, error)
	LatestByUserID(ctx context.Context, userID int64) (*models.Credential, error)
	ListDistinctUsers(ctx context.Context) ([]int64, error)
	CountDistinctUsers(ctx context.Context) (int64, error)
}

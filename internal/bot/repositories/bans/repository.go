package bans

import "context"

// Repository is the persistent ban list. Add is idempotent; banning an
// already-banned user leaves exactly one entry.
type Repository interface {
	Add(ctx context.Context, userID int64) error
	Exists(ctx context.Context, userID int64) (bool, error)
}

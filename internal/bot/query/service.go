// Package query implements the administrative read path over the credential
// store: search by phone / user id / username, user listing, stats, and the
// ban action. It never mutates credentials.
package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/sessionvault/internal/bot/models"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/bans"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/counters"
	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/credentials"
	"github.com/dmitrijs2005/sessionvault/internal/common"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
)

// Profile is live account metadata obtained from the messaging transport.
type Profile struct {
	ID        int64
	Name      string
	Usernames []string
	Premium   bool
	Frozen    bool
}

// Resolver is the identity-resolution capability supplied by the transport.
type Resolver interface {
	// ResolveUsername maps a username to a user id.
	ResolveUsername(ctx context.Context, username string) (int64, error)

	// Profile loads live metadata for a user id.
	Profile(ctx context.Context, userID int64) (*Profile, error)
}

// Box decrypts stored secrets for display.
type Box interface {
	Decrypt(ciphertext string) (string, error)
}

// Result is one decrypted credential paired with live profile metadata.
// Profile is nil when the transport could not resolve the account.
type Result struct {
	UserID   int64
	Phone    string
	Password string
	Session  string
	Profile  *Profile
}

type Stats struct {
	Users     int64
	CodesSent int64
}

type Service struct {
	creds    credentials.Repository
	bans     bans.Repository
	counters counters.Repository
	box      Box
	resolver Resolver
	logger   logging.Logger
}

func NewService(creds credentials.Repository, bans bans.Repository, counters counters.Repository,
	box Box, resolver Resolver, logger logging.Logger) *Service {
	return &Service{
		creds:    creds,
		bans:     bans,
		counters: counters,
		box:      box,
		resolver: resolver,
		logger:   logger.With("module", "query"),
	}
}

// Search resolves key — a phone number (leading +), a numeric user id, or a
// username — to the matching credentials with their secrets decrypted.
// Records whose ciphertext fails authentication are skipped, not fatal.
func (s *Service) Search(ctx context.Context, key string) ([]Result, error) {
	var (
		found []models.Credential
		err   error
	)

	switch {
	case key == "":
		return nil, common.ErrInvalidInput

	case key[0] == '+':
		found, err = s.creds.FindByPhone(ctx, key)

	case isDigits(key):
		var userID int64
		userID, err = strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, common.ErrInvalidInput
		}
		found, err = s.creds.FindByUserID(ctx, userID)

	default:
		var userID int64
		userID, err = s.resolver.ResolveUsername(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown username %q", common.ErrNotFound, key)
		}
		found, err = s.creds.FindByUserID(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(found))
	for _, cred := range found {
		password, err := s.box.Decrypt(cred.EncPassword)
		if err != nil {
			s.skipCorrupt(ctx, &cred, err)
			continue
		}
		session, err := s.box.Decrypt(cred.EncSession)
		if err != nil {
			s.skipCorrupt(ctx, &cred, err)
			continue
		}

		r := Result{
			UserID:   cred.UserID,
			Phone:    cred.Phone,
			Password: password,
			Session:  session,
		}
		// Profile metadata is best effort; a resolver failure does not hide
		// the stored credential.
		if profile, err := s.resolver.Profile(ctx, cred.UserID); err == nil {
			r.Profile = profile
		}
		results = append(results, r)
	}

	return results, nil
}

// ListUsers returns the distinct user ids holding at least one credential.
func (s *Service) ListUsers(ctx context.Context) ([]int64, error) {
	return s.creds.ListDistinctUsers(ctx)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.creds.CountDistinctUsers(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := s.counters.Read(ctx, models.CounterCodesSent)
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, CodesSent: codes}, nil
}

func (s *Service) HasCredential(ctx context.Context, userID int64) (bool, error) {
	return s.creds.Has(ctx, userID)
}

// Ban blocks the user from all interaction. Idempotent.
func (s *Service) Ban(ctx context.Context, userID int64) error {
	return s.bans.Add(ctx, userID)
}

func (s *Service) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return s.bans.Exists(ctx, userID)
}

func (s *Service) skipCorrupt(ctx context.Context, cred *models.Credential, err error) {
	if errors.Is(err, common.ErrCorruptCiphertext) {
		s.logger.Warn(ctx, "skipping credential with corrupt ciphertext",
			"user_id", cred.UserID, "phone", cred.Phone)
		return
	}
	s.logger.Error(ctx, "credential decrypt failed",
		"user_id", cred.UserID, "phone", cred.Phone, "error", err)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Package media lets a logged-in user fetch a message's media through their
// own stored session: the most recent credential is decrypted, a protocol
// handle is restored from it, and the referenced message is loaded for the
// transport to re-send.
package media

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/dmitrijs2005/sessionvault/internal/bot/repositories/credentials"
	"github.com/dmitrijs2005/sessionvault/internal/common"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
	"github.com/dmitrijs2005/sessionvault/internal/telelink"
)

var linkPattern = regexp.MustCompile(`^https?://t\.me/([^/]+)/(\d+)$`)

// Box decrypts the stored session secret.
type Box interface {
	Decrypt(ciphertext string) (string, error)
}

type Service struct {
	creds  credentials.Repository
	box    Box
	dialer telelink.Dialer
	logger logging.Logger
}

func NewService(creds credentials.Repository, box Box, dialer telelink.Dialer, logger logging.Logger) *Service {
	return &Service{
		creds:  creds,
		box:    box,
		dialer: dialer,
		logger: logger.With("module", "media"),
	}
}

// Fetch loads the message referenced by a https://t.me/<chat>/<id> link using
// userID's most recent stored session. Malformed links fail with
// common.ErrInvalidInput; a missing or undecryptable credential fails with
// common.ErrNotFound; telelink.ErrNotParticipant passes through so the caller
// can explain the membership requirement.
func (s *Service) Fetch(ctx context.Context, userID int64, link string) (*telelink.Message, error) {
	match := linkPattern.FindStringSubmatch(link)
	if match == nil {
		return nil, fmt.Errorf("%w: bad message link", common.ErrInvalidInput)
	}
	chat := match[1]
	msgID, err := strconv.Atoi(match[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad message id", common.ErrInvalidInput)
	}

	cred, err := s.creds.LatestByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.box.Decrypt(cred.EncSession)
	if err != nil {
		// A corrupt record behaves like an absent one.
		if errors.Is(err, common.ErrCorruptCiphertext) {
			s.logger.Warn(ctx, "stored session is corrupt", "user_id", userID, "phone", cred.Phone)
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	handle, err := s.dialer.Restore(ctx, session)
	if err != nil {
		s.logger.Error(ctx, "session restore failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: restore failed", common.ErrTransport)
	}
	defer handle.Close()

	msg, err := handle.GetMessage(ctx, chat, msgID)
	if err != nil {
		if errors.Is(err, telelink.ErrNotParticipant) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}

	return msg, nil
}

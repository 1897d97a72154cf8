// Package login implements the per-user authentication flow: the in-memory
// login sessions, the registry that enforces one live session per user, and
// the state machine driving the phone → code → password handshake.
package login

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionvault/internal/telelink"
)

// errSessionClosed is returned by the handle wrappers when the session was
// ended (user restart or TTL sweep) before the call could start.
var errSessionClosed = errors.New("login session closed")

type Stage int

const (
	StageAwaitingPhone Stage = iota
	StageAwaitingCode
	StageAwaitingPassword
	StageAuthenticated
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingPhone:
		return "awaiting_phone"
	case StageAwaitingCode:
		return "awaiting_code"
	case StageAwaitingPassword:
		return "awaiting_password"
	case StageAuthenticated:
		return "authenticated"
	case StageFailed:
		return "failed"
	}
	return "unknown"
}

// codeLength is how many one-time-code digits the remote service issues.
const codeLength = 5

// Session is one in-flight login attempt. It exists only in memory: a process
// restart aborts all in-flight logins (the protocol handles cannot survive a
// restart anyway). All field access is serialized per user by the dispatcher;
// touched is additionally read by the registry sweeper under the registry
// lock.
//
// The protocol handle is the one field two goroutines can reach: the user's
// own event and the TTL sweeper ending the session. handleMu makes those
// mutually exclusive, so Close never runs while a call is in flight and the
// handle is never used after it.
type Session struct {
	UserID    int64
	Phone     string
	AttemptID string

	Stage            Stage
	PendingCode      string
	CodeHash         string
	Handle           telelink.Handle
	PasswordAttempts int

	handleMu sync.Mutex
	released bool

	touched time.Time
}

// attachHandle installs the freshly connected handle. It reports false — and
// closes the handle — when the session was already ended, which can happen if
// the sweeper fires between Begin and Connect returning.
func (s *Session) attachHandle(h telelink.Handle) bool {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	if s.released {
		_ = h.Close()
		return false
	}
	s.Handle = h
	return true
}

func (s *Session) requestCode(ctx context.Context, phone string) (string, error) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	if s.Handle == nil {
		return "", errSessionClosed
	}
	return s.Handle.RequestCode(ctx, phone)
}

func (s *Session) sendCode(ctx context.Context, phone, code, codeHash string) (telelink.SignInResult, error) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	if s.Handle == nil {
		return telelink.SignInResult{}, errSessionClosed
	}
	return s.Handle.SubmitCode(ctx, phone, code, codeHash)
}

func (s *Session) sendPassword(ctx context.Context, password string) (telelink.SignInResult, error) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	if s.Handle == nil {
		return telelink.SignInResult{}, errSessionClosed
	}
	return s.Handle.SubmitPassword(ctx, password)
}

// release closes the handle exactly once. It blocks until any in-flight call
// on the handle has returned.
func (s *Session) release() {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	s.released = true
	if s.Handle != nil {
		_ = s.Handle.Close()
		s.Handle = nil
	}
}

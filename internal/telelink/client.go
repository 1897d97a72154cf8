// Package telelink defines the capability surface of the remote messaging
// protocol client. The wire protocol itself lives outside this repo; the bot
// only depends on these interfaces, and tests substitute fakes.
package telelink

import (
	"context"
	"errors"
)

// SignInStatus is the typed outcome of a sign-in step. The protocol adapter
// classifies upstream errors once, so no caller ever matches error strings to
// drive control flow.
type SignInStatus int

const (
	// StatusOK: signed in; Session carries the exported session secret.
	StatusOK SignInStatus = iota
	// StatusSecondFactor: the account requires a password; the handle stays
	// open and SubmitPassword must follow.
	StatusSecondFactor
	// StatusAuthFailure: bad code, bad password or expired code-hash.
	StatusAuthFailure
)

// SignInResult is returned by SubmitCode and SubmitPassword. Message carries
// the upstream failure text when Status is StatusAuthFailure.
type SignInResult struct {
	Status  SignInStatus
	Session string
	Message string
}

// ErrNotParticipant is reported by GetMessage when the restored account is not
// a member of the requested chat.
var ErrNotParticipant = errors.New("not a chat participant")

// Handle is one live protocol connection driving a login handshake. A handle
// is exclusively owned by a single login session and must never be shared
// between goroutines. Close releases the connection and is idempotent.
type Handle interface {
	// RequestCode asks the remote service to send a one-time code to phone
	// and returns the correlation token required to submit it back.
	RequestCode(ctx context.Context, phone string) (codeHash string, err error)

	// SubmitCode submits the accumulated one-time code. A non-nil error means
	// the remote service was unreachable; auth outcomes come back typed in
	// the result.
	SubmitCode(ctx context.Context, phone, code, codeHash string) (SignInResult, error)

	// SubmitPassword completes a second-factor login on the same handle.
	SubmitPassword(ctx context.Context, password string) (SignInResult, error)

	Close() error
}

// Message is a fetched remote message. Media is an opaque reference the
// transport layer knows how to re-send; it is empty when the message carries
// no downloadable media.
type Message struct {
	Media string
}

// UserHandle is a connection restored from a stored session secret, acting as
// the end user's own account.
type UserHandle interface {
	// GetMessage loads a single message from the named chat.
	GetMessage(ctx context.Context, chat string, msgID int) (*Message, error)

	Close() error
}

// Dialer opens protocol connections. Connect starts a fresh anonymous handle
// for a new login; Restore revives a previously exported session secret.
type Dialer interface {
	Connect(ctx context.Context) (Handle, error)
	Restore(ctx context.Context, session string) (UserHandle, error)
}

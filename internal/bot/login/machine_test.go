package login

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionvault/internal/bot/models"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
	"github.com/dmitrijs2005/sessionvault/internal/telelink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeHandle struct {
	codeHash   string
	requestErr error

	submitCalls  int
	submitPhone  string
	submitCode   string
	submitHash   string
	submitRes    telelink.SignInResult
	submitErr    error
	passwordRes  telelink.SignInResult
	passwordErr  error
	passwordGot  []string
	closed       int
}

func (f *fakeHandle) RequestCode(ctx context.Context, phone string) (string, error) {
	if f.requestErr != nil {
		return "", f.requestErr
	}
	return f.codeHash, nil
}

func (f *fakeHandle) SubmitCode(ctx context.Context, phone, code, codeHash string) (telelink.SignInResult, error) {
	f.submitCalls++
	f.submitPhone, f.submitCode, f.submitHash = phone, code, codeHash
	return f.submitRes, f.submitErr
}

func (f *fakeHandle) SubmitPassword(ctx context.Context, password string) (telelink.SignInResult, error) {
	f.passwordGot = append(f.passwordGot, password)
	return f.passwordRes, f.passwordErr
}

func (f *fakeHandle) Close() error {
	f.closed++
	return nil
}

type fakeDialer struct {
	handle     *fakeHandle
	connectErr error
	connects   int
}

func (f *fakeDialer) Connect(ctx context.Context) (telelink.Handle, error) {
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.handle, nil
}

func (f *fakeDialer) Restore(ctx context.Context, session string) (telelink.UserHandle, error) {
	return nil, errors.New("not implemented")
}

type fakeStore struct {
	creds      []*models.Credential
	putErr     error
	counters   map[string]int
	counterErr error
}

func (f *fakeStore) PutCredential(ctx context.Context, cred *models.Credential) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.creds = append(f.creds, cred)
	return nil
}

func (f *fakeStore) IncrementCounter(ctx context.Context, name string) error {
	if f.counterErr != nil {
		return f.counterErr
	}
	if f.counters == nil {
		f.counters = make(map[string]int)
	}
	f.counters[name]++
	return nil
}

// fakeBox marks values instead of encrypting so assertions stay readable.
type fakeBox struct{}

func (fakeBox) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

// ---- helpers ----

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestMachine(t *testing.T, dialer *fakeDialer, store *fakeStore, attempts int) (*Machine, *Registry) {
	t.Helper()
	registry := NewRegistry(testLogger())
	m := NewMachine(dialer, registry, store, fakeBox{}, testLogger(), attempts)
	return m, registry
}

// ---- StartLogin ----

func TestStartLogin_RejectsPhoneWithoutPlus(t *testing.T) {
	dialer := &fakeDialer{handle: &fakeHandle{}}
	store := &fakeStore{}
	m, registry := newTestMachine(t, dialer, store, 1)

	r, err := m.StartLogin(context.Background(), 7, "201234567890")
	require.NoError(t, err)

	assert.Contains(t, r.Text, "Invalid phone")
	assert.Equal(t, 0, dialer.connects, "no remote call for malformed phone")
	assert.Equal(t, 0, registry.Len())
}

func TestStartLogin_RequestsCode(t *testing.T) {
	handle := &fakeHandle{codeHash: "hash-1"}
	dialer := &fakeDialer{handle: handle}
	store := &fakeStore{}
	m, registry := newTestMachine(t, dialer, store, 1)

	r, err := m.StartLogin(context.Background(), 7, "+15551234567")
	require.NoError(t, err)

	s := registry.Get(7)
	require.NotNil(t, s)
	assert.Equal(t, StageAwaitingCode, s.Stage)
	assert.Equal(t, "", s.PendingCode)
	assert.Equal(t, "hash-1", s.CodeHash)
	assert.Equal(t, 1, store.counters[models.CounterCodesSent])
	assert.NotEmpty(t, r.Buttons, "digit keypad expected")
}

func TestStartLogin_TransportFailureTearsDown(t *testing.T) {
	handle := &fakeHandle{requestErr: errors.New("flood wait")}
	dialer := &fakeDialer{handle: handle}
	m, registry := newTestMachine(t, dialer, &fakeStore{}, 1)

	r, err := m.StartLogin(context.Background(), 7, "+15551234567")
	require.NoError(t, err)

	assert.Contains(t, r.Text, "try again")
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 1, handle.closed, "handle must be released on teardown")
}

func TestStartLogin_RestartsInFlightLogin(t *testing.T) {
	first := &fakeHandle{codeHash: "hash-1"}
	dialer := &fakeDialer{handle: first}
	m, registry := newTestMachine(t, dialer, &fakeStore{}, 1)

	_, err := m.StartLogin(context.Background(), 7, "+15551111111")
	require.NoError(t, err)

	second := &fakeHandle{codeHash: "hash-2"}
	dialer.handle = second

	_, err = m.StartLogin(context.Background(), 7, "+15552222222")
	require.NoError(t, err)

	assert.Equal(t, 1, first.closed, "prior handle released on re-entry")
	s := registry.Get(7)
	require.NotNil(t, s)
	assert.Equal(t, "+15552222222", s.Phone)
	assert.Equal(t, "hash-2", s.CodeHash)
}

// ---- Digit / SubmitCode ----

func TestDigit_EchoesUntilFiveDigits(t *testing.T) {
	handle := &fakeHandle{codeHash: "h"}
	dialer := &fakeDialer{handle: handle}
	m, _ := newTestMachine(t, dialer, &fakeStore{}, 1)

	_, err := m.StartLogin(context.Background(), 7, "+15551234567")
	require.NoError(t, err)

	for i, d := range []string{"1", "2", "3", "4"} {
		r, err := m.Digit(context.Background(), 7, d)
		require.NoError(t, err)
		assert.True(t, r.Edit, "echo prompt is re-rendered in place")
		assert.Contains(t, r.Text, "Current code:")
		assert.Equal(t, 0, handle.submitCalls, "no submit before digit %d", i+1)
	}
}

func TestDigit_SubmitsOnceAtFiveDigits(t *testing.T) {
	handle := &fakeHandle{
		codeHash:  "h",
		submitRes: telelink.SignInResult{Status: telelink.StatusOK, Session: "exported-session"},
	}
	dialer := &fakeDialer{handle: handle}
	store := &fakeStore{}
	m, registry := newTestMachine(t, dialer, store, 1)

	_, err := m.StartLogin(context.Background(), 7, "+15551234567")
	require.NoError(t, err)

	// Typed digits and button presses share the same path.
	_, err = m.Digit(context.Background(), 7, "123")
	require.NoError(t, err)
	_, err = m.Digit(context.Background(), 7, "4")
	require.NoError(t, err)
	r, err := m.Digit(context.Background(), 7, "5")
	require.NoError(t, err)

	require.Equal(t, 1, handle.submitCalls)
	assert.Equal(t, "12345", handle.submitCode, "digits concatenated in arrival order")
	assert.Equal(t, "+15551234567", handle.submitPhone)
	assert.Equal(t, "h", handle.submitHash)

	require.Len(t, store.creds, 1)
	assert.Equal(t, "enc:No Password", store.creds[0].EncPassword)
	assert.Equal(t, "enc:exported-session", store.creds[0].EncSession)
	assert.Contains(t, r.Text, "Login successful")

	assert.Equal(t, 0, registry.Len(), "session torn down after success")
	assert.Equal(t, 1, handle.closed)
}

func TestDigit_SecondFactorKeepsHandleOpen(t *testing.T) {
	handle := &fakeHandle{
		codeHash:  "h",
		submitRes: telelink.SignInResult{Status: telelink.StatusSecondFactor},
	}
	dialer := &fakeDialer{handle: handle}
	store := &fakeStore{}
	m, registry := newTestMachine(t, dialer, store, 1)

	_, err := m.StartLogin(context.Background(), 7, "+15551234567")
	require.NoError(t, err)
	_, err = m.Digit(context.Background(), 7, "123")
	require.NoError(t, err)
	r, err := m.Digit(context.Background(), 7, "45")
	require.NoError(t, err)

	s := registry.Get(7)
	require.NotNil(t, s)
	assert.Equal(t, StageAwaitingPassword, s.Stage)
	assert.Equal(t, "12345", s.PendingCode, "pending code is not reset")
	assert.Equal(t, 0, handle.closed, "handle stays open for the password step")
	assert.Empty(t, store.creds, "no credential persisted yet")
	assert.Contains(t, r.Text, "2FA enabled")
}

func TestDigit_AuthFailureSurfacesUpstreamText(t *testing.T) {
	handle := &fakeHandle{
		codeHash:  "h",
		submitRes: telelink.SignInResult{Status: telelink.StatusAuthFailure, Message: "PHONE_CODE_INVALID"},
	}
	dialer := &fakeDialer{handle: handle}
	m, registry := newTestMachine(t, dialer, &fakeStore{}, 1)

	_, err := m.StartLogin(context.Background(), 7, "+15551234567")
	require.NoError(t, err)
	r, err := m.Digit(context.Background(), 7, "12345")
	require.NoError(t, err)

	assert.Contains(t, r.Text, "PHONE_CODE_INVALID")
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 1, handle.closed)
}

func TestDigit_IgnoredOutsideAwaitingCode(t *testing.T) {
	m, _ := newTestMachine(t, &fakeDialer{handle: &fakeHandle{}}, &fakeStore{}, 1)

	r, err := m.Digit(context.Background(), 7, "1")
	require.NoError(t, err)
	assert.True(t, r.None())
}

// ---- Password ----

func newMachineAwaitingPassword(t *testing.T, handle *fakeHandle, store *fakeStore, attempts int) (*Machine, *Registry) {
	t.Helper()
	handle.codeHash = "h"
	handle.submitRes = telelink.SignInResult{Status: telelink.StatusSecondFactor}
	dialer := &fakeDialer{handle: handle}
	m, registry := newTestMachine(t, dialer, store, attempts)

	_, err := m.StartLogin(context.Background(), 7, "+15551234567")
	require.NoError(t, err)
	_, err = m.Digit(context.Background(), 7, "12345")
	require.NoError(t, err)
	require.Equal(t, StageAwaitingPassword, registry.Get(7).Stage)
	return m, registry
}

func TestPassword_Success(t *testing.T) {
	handle := &fakeHandle{
		passwordRes: telelink.SignInResult{Status: telelink.StatusOK, Session: "exported-session"},
	}
	store := &fakeStore{}
	m, registry := newMachineAwaitingPassword(t, handle, store, 1)

	r, err := m.Password(context.Background(), 7, "hunter2")
	require.NoError(t, err)

	require.Len(t, store.creds, 1)
	assert.Equal(t, "enc:hunter2", store.creds[0].EncPassword)
	assert.Equal(t, "enc:exported-session", store.creds[0].EncSession)
	assert.Contains(t, r.Text, "Login successful")
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 1, handle.closed)
}

func TestPassword_RetriesWithinBudget(t *testing.T) {
	handle := &fakeHandle{
		passwordRes: telelink.SignInResult{Status: telelink.StatusAuthFailure, Message: "PASSWORD_HASH_INVALID"},
	}
	m, registry := newMachineAwaitingPassword(t, handle, &fakeStore{}, 2)

	r, err := m.Password(context.Background(), 7, "wrong")
	require.NoError(t, err)
	assert.Contains(t, r.Text, "Try again")
	require.NotNil(t, registry.Get(7), "session survives within the attempt budget")

	r, err = m.Password(context.Background(), 7, "wrong again")
	require.NoError(t, err)
	assert.NotContains(t, r.Text, "Try again")
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, []string{"wrong", "wrong again"}, handle.passwordGot)
}

// ---- handle exclusivity ----

// blockingHandle parks SubmitCode until released, so tests can hold a call
// in flight while something else tries to end the session.
type blockingHandle struct {
	entered chan struct{}
	proceed chan struct{}

	mu          sync.Mutex
	closed      int
	closedEarly bool
}

func (b *blockingHandle) RequestCode(ctx context.Context, phone string) (string, error) {
	return "hash-1", nil
}

func (b *blockingHandle) SubmitCode(ctx context.Context, phone, code, codeHash string) (telelink.SignInResult, error) {
	close(b.entered)
	<-b.proceed
	b.mu.Lock()
	if b.closed > 0 {
		b.closedEarly = true
	}
	b.mu.Unlock()
	return telelink.SignInResult{Status: telelink.StatusAuthFailure, Message: "PHONE_CODE_INVALID"}, nil
}

func (b *blockingHandle) SubmitPassword(ctx context.Context, password string) (telelink.SignInResult, error) {
	return telelink.SignInResult{}, errors.New("unexpected password submit")
}

func (b *blockingHandle) Close() error {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
	return nil
}

type handleDialer struct{ handle telelink.Handle }

func (d handleDialer) Connect(ctx context.Context) (telelink.Handle, error) {
	return d.handle, nil
}

func (d handleDialer) Restore(ctx context.Context, session string) (telelink.UserHandle, error) {
	return nil, errors.New("not implemented")
}

// The TTL sweeper ends sessions through Registry.End while the user's own
// event may still be mid-call on the protocol handle. End must wait for the
// in-flight call and only then close the handle, exactly once.
func TestEnd_WaitsForInFlightSubmit(t *testing.T) {
	handle := &blockingHandle{entered: make(chan struct{}), proceed: make(chan struct{})}
	registry := NewRegistry(testLogger())
	m := NewMachine(handleDialer{handle: handle}, registry, &fakeStore{}, fakeBox{}, testLogger(), 1)

	_, err := m.StartLogin(context.Background(), 7, "+15551234567")
	require.NoError(t, err)

	submitDone := make(chan struct{})
	go func() {
		defer close(submitDone)
		_, _ = m.Digit(context.Background(), 7, "12345")
	}()
	<-handle.entered

	endDone := make(chan struct{})
	go func() {
		defer close(endDone)
		registry.End(7)
	}()

	select {
	case <-endDone:
		t.Fatal("End returned while a submit was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(handle.proceed)
	<-endDone
	<-submitDone

	handle.mu.Lock()
	defer handle.mu.Unlock()
	assert.False(t, handle.closedEarly, "handle closed during an in-flight call")
	assert.Equal(t, 1, handle.closed)
	assert.Equal(t, 0, registry.Len())
}

func TestEnd_BeforeConnectClosesFreshHandle(t *testing.T) {
	registry := NewRegistry(testLogger())

	s, err := registry.Begin(7, "+15551234567")
	require.NoError(t, err)

	// Sweeper fires between Begin and the dialer returning.
	registry.End(7)

	handle := &fakeHandle{}
	assert.False(t, s.attachHandle(handle), "ended session must refuse the handle")
	assert.Equal(t, 1, handle.closed)
}

func TestPassword_StoreFailureDoesNotReportSuccess(t *testing.T) {
	handle := &fakeHandle{
		passwordRes: telelink.SignInResult{Status: telelink.StatusOK, Session: "exported-session"},
	}
	store := &fakeStore{putErr: errors.New("disk full")}
	m, registry := newMachineAwaitingPassword(t, handle, store, 1)

	r, err := m.Password(context.Background(), 7, "hunter2")
	require.NoError(t, err)

	assert.NotContains(t, r.Text, "successful")
	assert.Empty(t, store.creds)
	assert.Equal(t, 0, registry.Len())
}

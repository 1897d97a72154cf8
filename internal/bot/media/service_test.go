package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dmitrijs2005/sessionvault/internal/bot/models"
	"github.com/dmitrijs2005/sessionvault/internal/common"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
	"github.com/dmitrijs2005/sessionvault/internal/telelink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeCreds struct {
	latest *models.Credential
}

func (f *fakeCreds) Upsert(ctx context.Context, cred *models.Credential) error { return nil }

func (f *fakeCreds) Has(ctx context.Context, userID int64) (bool, error) {
	return f.latest != nil, nil
}
func (f *fakeCreds) FindByPhone(ctx context.Context, phone string) ([]models.Credential, error) {
	return nil, nil
}
func (f *fakeCreds) FindByUserID(ctx context.Context, userID int64) ([]models.Credential, error) {
	return nil, nil
}
func (f *fakeCreds) LatestByUserID(ctx context.Context, userID int64) (*models.Credential, error) {
	if f.latest == nil {
		return nil, common.ErrNotFound
	}
	return f.latest, nil
}
func (f *fakeCreds) ListDistinctUsers(ctx context.Context) ([]int64, error) { return nil, nil }
func (f *fakeCreds) CountDistinctUsers(ctx context.Context) (int64, error)  { return 0, nil }

type fakeBox struct{}

func (fakeBox) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", common.ErrCorruptCiphertext
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

type fakeUserHandle struct {
	msg    *telelink.Message
	getErr error
	closed int
}

func (f *fakeUserHandle) GetMessage(ctx context.Context, chat string, msgID int) (*telelink.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.msg, nil
}

func (f *fakeUserHandle) Close() error {
	f.closed++
	return nil
}

type fakeDialer struct {
	restored   string
	restoreErr error
	handle     *fakeUserHandle
}

func (f *fakeDialer) Connect(ctx context.Context) (telelink.Handle, error) {
	return nil, errors.New("not used here")
}

func (f *fakeDialer) Restore(ctx context.Context, session string) (telelink.UserHandle, error) {
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	f.restored = session
	return f.handle, nil
}

func newTestService(creds *fakeCreds, dialer *fakeDialer) *Service {
	return NewService(creds, fakeBox{}, dialer, testLogger())
}

func TestFetch_MalformedLink(t *testing.T) {
	svc := newTestService(&fakeCreds{}, &fakeDialer{})

	for _, link := range []string{
		"not a link",
		"https://example.com/chat/5",
		"https://t.me/chat/abc",
		"https://t.me/chat/5/extra",
	} {
		_, err := svc.Fetch(context.Background(), 7, link)
		assert.ErrorIs(t, err, common.ErrInvalidInput, "link %q", link)
	}
}

func TestFetch_NoStoredSession(t *testing.T) {
	svc := newTestService(&fakeCreds{}, &fakeDialer{})

	_, err := svc.Fetch(context.Background(), 7, "https://t.me/somechat/5")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFetch_CorruptSessionBehavesLikeAbsent(t *testing.T) {
	creds := &fakeCreds{latest: &models.Credential{UserID: 7, Phone: "+1", EncSession: "garbage"}}
	svc := newTestService(creds, &fakeDialer{})

	_, err := svc.Fetch(context.Background(), 7, "https://t.me/somechat/5")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFetch_RestoreFailure(t *testing.T) {
	creds := &fakeCreds{latest: &models.Credential{UserID: 7, Phone: "+1", EncSession: "enc:sess"}}
	dialer := &fakeDialer{restoreErr: errors.New("dial failed")}
	svc := newTestService(creds, dialer)

	_, err := svc.Fetch(context.Background(), 7, "https://t.me/somechat/5")
	require.ErrorIs(t, err, common.ErrTransport)
}

func TestFetch_NotParticipantPassesThrough(t *testing.T) {
	creds := &fakeCreds{latest: &models.Credential{UserID: 7, Phone: "+1", EncSession: "enc:sess"}}
	handle := &fakeUserHandle{getErr: telelink.ErrNotParticipant}
	svc := newTestService(creds, &fakeDialer{handle: handle})

	_, err := svc.Fetch(context.Background(), 7, "https://t.me/somechat/5")
	require.ErrorIs(t, err, telelink.ErrNotParticipant)
	assert.Equal(t, 1, handle.closed, "handle must be released on failure")
}

func TestFetch_Success(t *testing.T) {
	creds := &fakeCreds{latest: &models.Credential{UserID: 7, Phone: "+1", EncSession: "enc:sess-7"}}
	handle := &fakeUserHandle{msg: &telelink.Message{Media: "file-123"}}
	dialer := &fakeDialer{handle: handle}
	svc := newTestService(creds, dialer)

	msg, err := svc.Fetch(context.Background(), 7, "https://t.me/somechat/5")
	require.NoError(t, err)
	assert.Equal(t, "file-123", msg.Media)
	assert.Equal(t, "sess-7", dialer.restored, "the decrypted session string restores the handle")
	assert.Equal(t, 1, handle.closed)
}

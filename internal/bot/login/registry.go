package login

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionvault/internal/common"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
	"github.com/google/uuid"
)

// Registry owns the set of live login sessions and guarantees at most one per
// user. End is idempotent and always releases the session's protocol handle,
// so handles cannot leak through the registry.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	logger   logging.Logger
}

func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		logger:   logger.With("module", "login_registry"),
	}
}

// Begin creates a session for userID, failing with common.ErrLoginInProgress
// if one already exists. The caller must End the prior session first.
func (r *Registry) Begin(userID int64, phone string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[userID]; ok {
		return nil, common.ErrLoginInProgress
	}

	s := &Session{
		UserID:    userID,
		Phone:     phone,
		AttemptID: uuid.NewString(),
		Stage:     StageAwaitingPhone,
		touched:   time.Now(),
	}
	r.sessions[userID] = s
	return s, nil
}

// Get returns the live session for userID, or nil. A hit refreshes the
// session's idle timer.
func (r *Registry) Get(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	s.touched = time.Now()
	return s
}

// End removes the session for userID and releases its protocol handle.
// Calling End for an absent user is a no-op.
func (r *Registry) End(userID int64) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		s.release()
	}
}

// Active reports whether userID has a live session. Unlike Get it does not
// refresh the session's idle timer, so it is safe for bookkeeping paths that
// must not keep an abandoned login alive.
func (r *Registry) Active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[userID]
	return ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RunSweeper ends sessions idle for longer than ttl, checking every interval,
// until ctx is cancelled. Without it an abandoned login would hold its
// protocol handle open forever.
func (r *Registry) RunSweeper(ctx context.Context, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range r.expired(ttl) {
				r.logger.Info(ctx, "ending expired login session",
					"user_id", s.UserID, "attempt", s.AttemptID, "stage", s.Stage.String())
				r.End(s.UserID)
			}
		}
	}
}

func (r *Registry) expired(ttl time.Duration) []*Session {
	deadline := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*Session
	for _, s := range r.sessions {
		if s.touched.Before(deadline) {
			result = append(result, s)
		}
	}
	return result
}

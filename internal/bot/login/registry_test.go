package login

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionvault/internal/common"
)

func TestRegistry_BeginGetEnd(t *testing.T) {
	r := NewRegistry(testLogger())

	s, err := r.Begin(1, "+15551234567")
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	if s.Stage != StageAwaitingPhone {
		t.Errorf("new session stage = %v, want %v", s.Stage, StageAwaitingPhone)
	}
	if s.AttemptID == "" {
		t.Error("attempt id must be set")
	}

	if got := r.Get(1); got != s {
		t.Fatalf("Get returned %p, want %p", got, s)
	}
	if got := r.Get(2); got != nil {
		t.Fatalf("Get for unknown user returned %p", got)
	}

	r.End(1)
	if got := r.Get(1); got != nil {
		t.Fatal("session still present after End")
	}
}

func TestRegistry_SecondBeginFails(t *testing.T) {
	r := NewRegistry(testLogger())

	if _, err := r.Begin(1, "+15551111111"); err != nil {
		t.Fatalf("first Begin error: %v", err)
	}
	if _, err := r.Begin(1, "+15552222222"); !errors.Is(err, common.ErrLoginInProgress) {
		t.Fatalf("second Begin: want ErrLoginInProgress, got %v", err)
	}
	// A different user is unaffected.
	if _, err := r.Begin(2, "+15553333333"); err != nil {
		t.Fatalf("Begin for other user error: %v", err)
	}
}

func TestRegistry_ConcurrentBeginYieldsOneWinner(t *testing.T) {
	r := NewRegistry(testLogger())

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Begin(42, "+15551234567")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, common.ErrLoginInProgress):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly 1 winner, got %d", wins)
	}
}

func TestRegistry_EndIsIdempotentAndReleasesHandle(t *testing.T) {
	r := NewRegistry(testLogger())

	s, err := r.Begin(1, "+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	handle := &fakeHandle{}
	s.Handle = handle

	r.End(1)
	r.End(1)
	r.End(1)

	if handle.closed != 1 {
		t.Fatalf("handle closed %d times, want 1", handle.closed)
	}
}

func TestRegistry_ExpiredFindsIdleSessions(t *testing.T) {
	r := NewRegistry(testLogger())

	fresh, err := r.Begin(1, "+15551111111")
	if err != nil {
		t.Fatal(err)
	}
	stale, err := r.Begin(2, "+15552222222")
	if err != nil {
		t.Fatal(err)
	}

	r.mu.Lock()
	stale.touched = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	got := r.expired(10 * time.Minute)
	if len(got) != 1 || got[0] != stale {
		t.Fatalf("expired returned %v, want only the stale session", got)
	}

	// Get refreshes the idle timer.
	_ = fresh
	r.Get(2)
	if got := r.expired(10 * time.Minute); len(got) != 0 {
		t.Fatalf("expired after Get returned %d sessions, want 0", len(got))
	}
}

func TestRegistry_ActiveDoesNotRefreshIdleTimer(t *testing.T) {
	r := NewRegistry(testLogger())

	s, err := r.Begin(1, "+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	r.mu.Lock()
	s.touched = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	if !r.Active(1) {
		t.Fatal("Active must report the live session")
	}
	if got := r.expired(10 * time.Minute); len(got) != 1 {
		t.Fatalf("Active refreshed the idle timer: expired returned %d sessions, want 1", len(got))
	}
	if r.Active(2) {
		t.Fatal("Active reported a session for an unknown user")
	}
}

func TestRunSweeper_ZeroIntervalDoesNotPanic(t *testing.T) {
	r := NewRegistry(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.RunSweeper(ctx, 10*time.Minute, 0)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

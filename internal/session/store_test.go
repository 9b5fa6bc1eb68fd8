package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/features"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)}
	s := NewStore()
	s.now = clock.Now
	return s, clock
}

func taps(n int) []features.Event {
	out := make([]features.Event, n)
	for i := range out {
		at := int64(i * 1000)
		out[i] = features.Event{TargetAppearedMS: at, TimestampMS: at + 400, WasHit: true}
	}
	return out
}

func TestStartAppendComplete(t *testing.T) {
	s, _ := newTestStore()
	learner := uuid.New()

	id := s.Start(learner, "focus_tap")
	if id == uuid.Nil {
		t.Fatal("expected session id")
	}

	total, err := s.Append(id, taps(3))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 buffered events, got %d", total)
	}
	total, err = s.Append(id, taps(2))
	if err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected 5 buffered events, got %d", total)
	}

	v, err := s.Complete(id)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if v.TotalEvents != 5 || v.MeanReactionTime != 400 {
		t.Errorf("unexpected vector: %+v", v)
	}

	info, err := s.Get(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !info.Completed {
		t.Error("expected session marked completed")
	}
	if info.EventCount != 0 {
		t.Errorf("expected event buffer cleared, got %d events", info.EventCount)
	}
	if info.LearnerID != learner || info.ActivityKind != "focus_tap" {
		t.Errorf("metadata not kept: %+v", info)
	}
}

func TestComplete_Twice(t *testing.T) {
	s, _ := newTestStore()
	id := s.Start(uuid.New(), "focus_tap")

	if _, err := s.Complete(id); err != nil {
		t.Fatalf("first complete failed: %v", err)
	}
	_, err := s.Complete(id)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestComplete_RetryAfterFailedSettle(t *testing.T) {
	s, _ := newTestStore()
	id := s.Start(uuid.New(), "focus_tap")
	if _, err := s.Append(id, taps(4)); err != nil {
		t.Fatal(err)
	}

	first, err := s.Complete(id)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	// a concurrent caller must not get the vector while the first one persists
	if _, err := s.Complete(id); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted while settling, got %v", err)
	}

	s.Settle(id, false)
	again, err := s.Complete(id)
	if err != nil {
		t.Fatalf("retry after failed settle: %v", err)
	}
	if again != first {
		t.Errorf("retry returned %+v, want %+v", again, first)
	}

	s.Settle(id, true)
	if _, err := s.Complete(id); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted after settle, got %v", err)
	}
}

func TestAppend_UnknownOrCompleted(t *testing.T) {
	s, _ := newTestStore()

	if _, err := s.Append(uuid.New(), taps(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown session: expected ErrNotFound, got %v", err)
	}

	id := s.Start(uuid.New(), "focus_tap")
	if _, err := s.Complete(id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(id, taps(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("completed session: expected ErrNotFound, got %v", err)
	}
}

func TestComplete_Unknown(t *testing.T) {
	s, _ := newTestStore()
	if _, err := s.Complete(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStart_RegeneratesCollidingKey(t *testing.T) {
	s, _ := newTestStore()
	fixed := uuid.New()
	fresh := uuid.New()
	calls := 0
	s.newID = func() uuid.UUID {
		calls++
		if calls <= 2 {
			return fixed
		}
		return fresh
	}

	first := s.Start(uuid.New(), "focus_tap")
	second := s.Start(uuid.New(), "focus_tap")
	if first != fixed {
		t.Fatalf("expected first key %s, got %s", fixed, first)
	}
	if second != fresh {
		t.Errorf("expected colliding key to be replaced, got %s", second)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", s.Len())
	}
}

func TestConcurrentAppendAndComplete(t *testing.T) {
	s, _ := newTestStore()
	id := s.Start(uuid.New(), "focus_tap")

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Append(id, taps(1)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}

	var v features.Vector
	var completeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, completeErr = s.Complete(id)
	}()
	wg.Wait()

	if completeErr != nil {
		t.Fatalf("complete failed: %v", completeErr)
	}
	// every append that was accepted happened before completion
	if v.TotalEvents != accepted {
		t.Errorf("completion saw %d events, %d appends were accepted", v.TotalEvents, accepted)
	}
}

func TestEvict(t *testing.T) {
	s, clock := newTestStore()

	stale := s.Start(uuid.New(), "focus_tap")
	if _, err := s.Append(stale, taps(4)); err != nil {
		t.Fatal(err)
	}
	done := s.Start(uuid.New(), "focus_tap")
	if _, err := s.Complete(done); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Hour)
	fresh := s.Start(uuid.New(), "focus_tap")

	abandoned, tombstones := s.Evict(time.Hour)
	if abandoned != 1 || tombstones != 1 {
		t.Errorf("expected 1 abandoned and 1 tombstone, got %d and %d", abandoned, tombstones)
	}

	if _, err := s.Get(stale); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale session should be gone, got %v", err)
	}
	if _, err := s.Append(stale, taps(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("append to evicted session: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get(fresh); err != nil {
		t.Errorf("fresh session should survive: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 remaining session, got %d", s.Len())
	}
}

func TestReaperSweep(t *testing.T) {
	s, clock := newTestStore()
	s.Start(uuid.New(), "focus_tap")
	clock.Advance(25 * time.Hour)

	r := NewReaper(s, 24*time.Hour, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	abandoned, _ := r.Sweep()
	if abandoned != 1 {
		t.Errorf("expected 1 abandoned session, got %d", abandoned)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

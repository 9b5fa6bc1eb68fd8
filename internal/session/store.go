package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/features"
)

var (
	// ErrNotFound covers unknown, reaped, and already completed sessions on
	// the append path.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyCompleted is returned by a second Complete call.
	ErrAlreadyCompleted = errors.New("session already completed")
)

// Info is the metadata view of a session. It never carries events.
type Info struct {
	ID           uuid.UUID
	LearnerID    uuid.UUID
	ActivityKind string
	CreatedAt    time.Time
	Completed    bool
	EventCount   int
}

type entry struct {
	mu sync.Mutex

	id           uuid.UUID
	learnerID    uuid.UUID
	activityKind string
	createdAt    time.Time
	completed    bool
	completedAt  time.Time
	evicted      bool
	events       []features.Event

	// unsaved holds the extracted vector of a completed session until its
	// completion is persisted. settling is set while a caller is persisting.
	unsaved  *features.Vector
	settling bool
}

// Store holds raw events for active sessions in process memory only.
//
// The map lock is held just long enough to find an entry; every mutation of
// an entry happens under that entry's own lock, so one session's append can
// never interleave with its completion while unrelated sessions proceed.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*entry),
		now:      time.Now,
		newID:    uuid.New,
	}
}

// Start registers a new session and returns its key.
func (s *Store) Start(learnerID uuid.UUID, activityKind string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		if _, taken := s.sessions[id]; !taken {
			break
		}
		id = s.newID()
	}
	s.sessions[id] = &entry{
		id:           id,
		learnerID:    learnerID,
		activityKind: activityKind,
		createdAt:    s.now().UTC(),
	}
	return id
}

func (s *Store) get(id uuid.UUID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

// Append adds events to an open session and returns the buffered total.
func (s *Store) Append(id uuid.UUID, events []features.Event) (int, error) {
	e, ok := s.get(id)
	if !ok {
		return 0, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.evicted || e.completed {
		return 0, ErrNotFound
	}
	e.events = append(e.events, events...)
	return len(e.events), nil
}

// Complete extracts features and drops the event buffer in one critical
// section. The entry stays behind as a metadata tombstone so a repeated call
// reports ErrAlreadyCompleted instead of recomputing.
//
// The caller must report the outcome of persisting the completion with
// Settle. Until a Settle(id, true), the vector stays on the tombstone and a
// later Complete hands it out again instead of failing.
func (s *Store) Complete(id uuid.UUID) (features.Vector, error) {
	e, ok := s.get(id)
	if !ok {
		return features.Vector{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.evicted {
		return features.Vector{}, ErrNotFound
	}
	if e.completed {
		if e.unsaved == nil || e.settling {
			return features.Vector{}, ErrAlreadyCompleted
		}
		e.settling = true
		return *e.unsaved, nil
	}
	v := features.Extract(e.events)
	e.events = nil
	e.completed = true
	e.completedAt = s.now().UTC()
	e.unsaved = &v
	e.settling = true
	return v, nil
}

// Settle ends a Complete. A persisted completion drops the vector for good;
// a failed one leaves it for the next Complete call.
func (s *Store) Settle(id uuid.UUID, persisted bool) {
	e, ok := s.get(id)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settling = false
	if persisted {
		e.unsaved = nil
	}
}

// Get returns the metadata view of a session.
func (s *Store) Get(id uuid.UUID) (Info, error) {
	e, ok := s.get(id)
	if !ok {
		return Info{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return Info{}, ErrNotFound
	}
	return Info{
		ID:           e.id,
		LearnerID:    e.learnerID,
		ActivityKind: e.activityKind,
		CreatedAt:    e.createdAt,
		Completed:    e.completed,
		EventCount:   len(e.events),
	}, nil
}

// Len returns the number of tracked sessions, tombstones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Evict removes sessions that outlived ttl: open sessions by creation time,
// completed tombstones by completion time. It returns the number of open
// sessions whose raw events were discarded and the number of tombstones
// dropped.
func (s *Store) Evict(ttl time.Duration) (abandoned, tombstones int) {
	cutoff := s.now().UTC().Add(-ttl)

	s.mu.RLock()
	candidates := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		candidates = append(candidates, e)
	}
	s.mu.RUnlock()

	for _, e := range candidates {
		e.mu.Lock()
		expired := false
		switch {
		case !e.completed && e.createdAt.Before(cutoff):
			e.events = nil
			expired = true
			abandoned++
		case e.completed && e.completedAt.Before(cutoff):
			expired = true
			tombstones++
		}
		// flagged before unlinking: a caller still holding this entry must
		// not buffer into it after the map forgets it
		e.evicted = expired
		e.mu.Unlock()

		if expired {
			s.mu.Lock()
			delete(s.sessions, e.id)
			s.mu.Unlock()
		}
	}
	return abandoned, tombstones
}

package narrative

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/governance"
	"github.com/MikeSquared-Agency/beacon/internal/llm"
	"github.com/MikeSquared-Agency/beacon/internal/pattern"
	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

type memStore struct {
	mu        sync.Mutex
	snapshots []pattern.Snapshot
	trends    []trend.Summary
	reports   map[uuid.UUID]Report
	inserts   int
}

func newMemStore() *memStore {
	return &memStore{reports: make(map[uuid.UUID]Report)}
}

func (m *memStore) SnapshotsForReport(_ context.Context, learnerID, sessionID uuid.UUID) ([]pattern.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pattern.Snapshot
	for _, s := range m.snapshots {
		if s.LearnerID != learnerID {
			continue
		}
		if sessionID != uuid.Nil && s.SessionID != sessionID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) TrendSummaries(_ context.Context, learnerID uuid.UUID) ([]trend.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []trend.Summary
	for _, t := range m.trends {
		if t.LearnerID == learnerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) LatestReusableReport(_ context.Context, key Key) (Report, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []Report
	for _, r := range m.reports {
		if r.Key() == key && (r.ValidationStatus == StatusApproved || r.ValidationStatus == StatusRewritten) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return Report{}, false, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	return matches[0], true, nil
}

func (m *memStore) InsertPendingReport(_ context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = r
	m.inserts++
	return nil
}

func (m *memStore) FinalizeReport(_ context.Context, id uuid.UUID, status Status, method Method, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok || r.ValidationStatus != StatusPending {
		return ErrAlreadyFinalized
	}
	r.ValidationStatus = status
	r.GenerationMethod = method
	r.Content = content
	m.reports[id] = r
	return nil
}

func (m *memStore) report(id uuid.UUID) Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[id]
}

// scriptedLLM answers generation and validation calls separately.
type scriptedLLM struct {
	generate func(req llm.Request) (string, error)
	validate func(req llm.Request) (string, error)

	genCalls atomic.Int32
	valCalls atomic.Int32

	mu       sync.Mutex
	requests []llm.Request
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if req.System == validatorSystem {
		s.valCalls.Add(1)
		return s.validate(req)
	}
	s.genCalls.Add(1)
	return s.generate(req)
}

func (s *scriptedLLM) generationRequests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []llm.Request
	for _, r := range s.requests {
		if r.System != validatorSystem {
			out = append(out, r)
		}
	}
	return out
}

func reply(text string) func(llm.Request) (string, error) {
	return func(llm.Request) (string, error) { return text, nil }
}

func fail(err error) func(llm.Request) (string, error) {
	return func(llm.Request) (string, error) { return "", err }
}

var errOutage = errors.New("upstream down")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadCorpus(t *testing.T) *governance.Corpus {
	t.Helper()
	c, err := governance.Load("")
	if err != nil {
		t.Fatalf("load corpus: %v", err)
	}
	return c
}

type fixture struct {
	store     *memStore
	llm       *scriptedLLM
	generator *Generator
	learner   uuid.UUID
	session   uuid.UUID
}

func newFixture(t *testing.T, model *scriptedLLM) *fixture {
	t.Helper()
	st := newMemStore()
	learner, session := uuid.New(), uuid.New()
	st.snapshots = []pattern.Snapshot{
		pattern.NewSnapshot(session, learner, pattern.Infer(steadyVector()), time.Now()),
	}
	v := NewValidator(loadCorpus(t), model, time.Second, quietLogger())
	g := NewGenerator(st, model, v, Timeouts{LLM: time.Second, Store: time.Second}, quietLogger())
	return &fixture{store: st, llm: model, generator: g, learner: learner, session: session}
}

func (f *fixture) learnerKey(a Audience) Key {
	return Key{LearnerID: f.learner, Scope: ScopeLearner, Audience: a}
}

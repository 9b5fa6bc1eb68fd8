package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/access"
	"github.com/MikeSquared-Agency/beacon/internal/governance"
	"github.com/MikeSquared-Agency/beacon/internal/hermes"
	"github.com/MikeSquared-Agency/beacon/internal/llm"
	"github.com/MikeSquared-Agency/beacon/internal/narrative"
	"github.com/MikeSquared-Agency/beacon/internal/pattern"
	"github.com/MikeSquared-Agency/beacon/internal/session"
	"github.com/MikeSquared-Agency/beacon/internal/store"
	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

type sessionRow struct {
	learnerID uuid.UUID
	completed bool
}

// memStore stands in for Postgres across every interface the pipeline uses.
type memStore struct {
	mu        sync.Mutex
	learners  map[string]uuid.UUID
	sessions  map[uuid.UUID]*sessionRow
	snapshots []pattern.Snapshot
	trends    map[string]trend.Summary
	reports   map[uuid.UUID]narrative.Report
	upserts   int

	createErr   error
	completeErr error // returned once by CompleteSession
	pingErr     error
}

func newMemStore() *memStore {
	return &memStore{
		learners: make(map[string]uuid.UUID),
		sessions: make(map[uuid.UUID]*sessionRow),
		trends:   make(map[string]trend.Summary),
		reports:  make(map[uuid.UUID]narrative.Report),
	}
}

func (m *memStore) addLearner(code string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.learners[code] = id
	return id
}

func (m *memStore) LearnerIDByCode(_ context.Context, code string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.learners[code]
	return id, ok, nil
}

func (m *memStore) LearnerExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.learners {
		if l == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateSession(_ context.Context, id, learnerID uuid.UUID, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.sessions[id] = &sessionRow{learnerID: learnerID}
	return nil
}

func (m *memStore) CompleteSession(_ context.Context, id uuid.UUID, _ time.Time, snap *pattern.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.completeErr; err != nil {
		m.completeErr = nil
		return err
	}
	row, ok := m.sessions[id]
	if !ok || row.completed {
		return store.ErrNotFound
	}
	row.completed = true
	if snap != nil {
		m.snapshots = append(m.snapshots, *snap)
	}
	return nil
}

func (m *memStore) SnapshotsForReport(_ context.Context, learnerID, sessionID uuid.UUID) ([]pattern.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pattern.Snapshot
	for _, s := range m.snapshots {
		if s.LearnerID == learnerID && (sessionID == uuid.Nil || s.SessionID == sessionID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) UpsertTrends(_ context.Context, summaries []trend.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range summaries {
		m.trends[s.LearnerID.String()+"/"+s.PatternName] = s
	}
	m.upserts++
	return nil
}

func (m *memStore) TrendSummaries(_ context.Context, learnerID uuid.UUID) ([]trend.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []trend.Summary
	for _, s := range m.trends {
		if s.LearnerID == learnerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatternName < out[j].PatternName })
	return out, nil
}

func (m *memStore) LatestReusableReport(_ context.Context, key narrative.Key) (narrative.Report, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best narrative.Report
	found := false
	for _, r := range m.reports {
		if r.Key() != key || (r.ValidationStatus != narrative.StatusApproved && r.ValidationStatus != narrative.StatusRewritten) {
			continue
		}
		if !found || r.CreatedAt.After(best.CreatedAt) {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (m *memStore) InsertPendingReport(_ context.Context, r narrative.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = r
	return nil
}

func (m *memStore) FinalizeReport(_ context.Context, id uuid.UUID, status narrative.Status, method narrative.Method, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok || r.ValidationStatus != narrative.StatusPending {
		return narrative.ErrAlreadyFinalized
	}
	r.ValidationStatus, r.GenerationMethod, r.Content = status, method, content
	m.reports[id] = r
	return nil
}

func (m *memStore) GetReport(_ context.Context, id uuid.UUID) (narrative.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok || r.ValidationStatus == narrative.StatusPending {
		return narrative.Report{}, store.ErrNotFound
	}
	return r, nil
}

func (m *memStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *memStore) snapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// stalledLearners never answers until the caller gives up.
type stalledLearners struct{}

func (stalledLearners) LearnerIDByCode(ctx context.Context, _ string) (uuid.UUID, bool, error) {
	<-ctx.Done()
	return uuid.Nil, false, ctx.Err()
}

// fakeLLM answers generation with narrative and validation with verdict.
type fakeLLM struct {
	narrative string
	verdict   string
	genErr    error

	mu      sync.Mutex
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.Contains(req.User, "REPORT TO VALIDATE") {
		return f.verdict, nil
	}
	f.prompts = append(f.prompts, req.User)
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.narrative, nil
}

func (f *fakeLLM) generations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type recordingBus struct {
	mu       sync.Mutex
	subjects []string
}

func (b *recordingBus) Publish(subject string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *recordingBus) count(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

var errDown = errors.New("database down")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	proc  *Processor
	store *memStore
	llm   *fakeLLM
	bus   *recordingBus
}

func newFixture(t *testing.T, rateLimit int) *fixture {
	t.Helper()
	corpus, err := governance.Load("")
	if err != nil {
		t.Fatalf("load corpus: %v", err)
	}
	logger := quietLogger()
	st := newMemStore()
	model := &fakeLLM{
		narrative: "Your child is building steady target tracking. Short, calm practice rounds can help this skill keep growing.",
		verdict:   "STATUS: APPROVED",
	}
	bus := &recordingBus{}

	resolver := access.NewResolver(access.NewMemoryLimiter(rateLimit, time.Minute), st, logger)
	validator := narrative.NewValidator(corpus, model, time.Second, logger)
	gen := narrative.NewGenerator(st, model, validator, narrative.Timeouts{LLM: time.Second, Store: time.Second}, logger)
	proc := New(resolver, session.NewStore(), st, gen, hermes.NewNotifier(bus, logger), time.Second, logger)

	// strictly increasing completion times keep snapshot order deterministic
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	proc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return &fixture{proc: proc, store: st, llm: model, bus: bus}
}

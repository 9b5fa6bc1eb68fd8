package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/access"
	"github.com/MikeSquared-Agency/beacon/internal/features"
	"github.com/MikeSquared-Agency/beacon/internal/hermes"
	"github.com/MikeSquared-Agency/beacon/internal/narrative"
	"github.com/MikeSquared-Agency/beacon/internal/pattern"
	"github.com/MikeSquared-Agency/beacon/internal/session"
	"github.com/MikeSquared-Agency/beacon/internal/store"
	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

// Store is the durable side of the pipeline. *store.Store satisfies it.
type Store interface {
	CreateSession(ctx context.Context, id, learnerID uuid.UUID, activityKind string, createdAt time.Time) error
	CompleteSession(ctx context.Context, id uuid.UUID, completedAt time.Time, snap *pattern.Snapshot) error
	LearnerExists(ctx context.Context, id uuid.UUID) (bool, error)
	SnapshotsForReport(ctx context.Context, learnerID, sessionID uuid.UUID) ([]pattern.Snapshot, error)
	UpsertTrends(ctx context.Context, summaries []trend.Summary) error
	GetReport(ctx context.Context, id uuid.UUID) (narrative.Report, error)
	Ping(ctx context.Context) error
}

// Processor orchestrates beacon's pipeline: code resolution, ephemeral
// sessions, pattern snapshots, trend refresh and report generation.
type Processor struct {
	resolver     *access.Resolver
	sessions     *session.Store
	store        Store
	generator    *narrative.Generator
	notifier     *hermes.Notifier
	storeTimeout time.Duration
	logger       *slog.Logger

	now func() time.Time
}

func New(resolver *access.Resolver, sessions *session.Store, s Store, gen *narrative.Generator, notifier *hermes.Notifier, storeTimeout time.Duration, logger *slog.Logger) *Processor {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	p := &Processor{
		resolver:     resolver,
		sessions:     sessions,
		store:        s,
		generator:    gen,
		notifier:     notifier,
		storeTimeout: storeTimeout,
		logger:       logger,
		now:          time.Now,
	}
	gen.OnFinalized(p.reportFinalized)
	return p
}

// Completion is what a client learns about a finished session. The pattern
// itself is only visible through reports.
type Completion struct {
	SessionID       uuid.UUID `json:"session_id"`
	TotalEvents     int       `json:"total_events"`
	PatternDetected bool      `json:"pattern_detected"`
}

// StartSession opens an in-memory session for the learner behind code and
// records its metadata row.
func (p *Processor) StartSession(ctx context.Context, code, activityKind string) (uuid.UUID, error) {
	learnerID, err := p.resolve(ctx, code)
	if err != nil {
		return uuid.Nil, err
	}

	id := p.sessions.Start(learnerID, activityKind)
	info, err := p.sessions.Get(id)
	if err != nil {
		return uuid.Nil, err
	}
	// on failure the in-memory session is left for the reaper
	err = p.withStore(ctx, func(ctx context.Context) error {
		return p.store.CreateSession(ctx, id, learnerID, activityKind, info.CreatedAt)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("record session: %w", err)
	}

	p.logger.Info("session started", "session_id", id, "learner_id", learnerID, "activity_kind", activityKind)
	return id, nil
}

// AppendEvents buffers events for an open session owned by code's learner.
// It returns the session's running total.
func (p *Processor) AppendEvents(ctx context.Context, code string, sessionID uuid.UUID, events []features.Event) (int, error) {
	if _, err := p.owned(ctx, code, sessionID); err != nil {
		return 0, err
	}
	total, err := p.sessions.Append(sessionID, events)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("events appended", "session_id", sessionID, "count", len(events), "total", total)
	return total, nil
}

// CompleteSession closes the session, infers its pattern and persists the
// snapshot. Sessions shorter than pattern.MinEvents complete without one.
// When persisting fails the session keeps its extracted features, and a
// repeated call persists them again.
func (p *Processor) CompleteSession(ctx context.Context, code string, sessionID uuid.UUID) (Completion, error) {
	info, err := p.owned(ctx, code, sessionID)
	if err != nil {
		return Completion{}, err
	}

	vec, err := p.sessions.Complete(sessionID)
	if err != nil {
		return Completion{}, err
	}
	completedAt := p.now().UTC()

	var snap *pattern.Snapshot
	if vec.TotalEvents >= pattern.MinEvents {
		s := pattern.NewSnapshot(sessionID, info.LearnerID, pattern.Infer(vec), completedAt)
		snap = &s
	}

	err = p.withStore(ctx, func(ctx context.Context) error {
		return p.store.CompleteSession(ctx, sessionID, completedAt, snap)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		// an earlier attempt committed but its caller never heard back
		p.sessions.Settle(sessionID, true)
		p.logger.Warn("session completion already recorded", "session_id", sessionID)
		return Completion{}, session.ErrAlreadyCompleted
	case err != nil:
		p.sessions.Settle(sessionID, false)
		return Completion{}, fmt.Errorf("persist completion: %w", err)
	}
	p.sessions.Settle(sessionID, true)

	evt := hermes.SessionCompleted{
		SessionID:       sessionID.String(),
		LearnerID:       info.LearnerID.String(),
		ActivityKind:    info.ActivityKind,
		PatternDetected: snap != nil,
		CompletedAt:     completedAt,
	}
	if snap != nil {
		evt.PatternName = snap.PatternName
	}
	p.notifier.SessionCompleted(evt)

	p.logger.Info("session completed",
		"session_id", sessionID,
		"learner_id", info.LearnerID,
		"total_events", vec.TotalEvents,
		"pattern_detected", snap != nil,
	)
	return Completion{SessionID: sessionID, TotalEvents: vec.TotalEvents, PatternDetected: snap != nil}, nil
}

// owned resolves code and checks the session belongs to its learner. A
// session owned by someone else is reported as not found.
func (p *Processor) owned(ctx context.Context, code string, sessionID uuid.UUID) (session.Info, error) {
	learnerID, err := p.resolve(ctx, code)
	if err != nil {
		return session.Info{}, err
	}
	info, err := p.sessions.Get(sessionID)
	if err != nil {
		return session.Info{}, err
	}
	if info.LearnerID != learnerID {
		p.logger.Warn("session ownership mismatch", "session_id", sessionID, "learner_id", learnerID)
		return session.Info{}, session.ErrNotFound
	}
	return info, nil
}

// resolve runs the code's rate check and lookup under the store timeout.
func (p *Processor) resolve(ctx context.Context, code string) (uuid.UUID, error) {
	var learnerID uuid.UUID
	err := p.withStore(ctx, func(ctx context.Context) error {
		var err error
		learnerID, err = p.resolver.Resolve(ctx, code)
		return err
	})
	return learnerID, err
}

// Ping checks the database within the store timeout.
func (p *Processor) Ping(ctx context.Context) error {
	return p.withStore(ctx, p.store.Ping)
}

func (p *Processor) withStore(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	return fn(ctx)
}

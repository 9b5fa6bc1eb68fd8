package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MikeSquared-Agency/beacon/internal/llm"
	"github.com/MikeSquared-Agency/beacon/internal/pattern"
	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

// Store is the persistence the generator needs. Pending rows are written
// before validation and finalized exactly once.
type Store interface {
	// SnapshotsForReport returns a learner's snapshots, restricted to one
	// session unless sessionID is uuid.Nil.
	SnapshotsForReport(ctx context.Context, learnerID, sessionID uuid.UUID) ([]pattern.Snapshot, error)
	TrendSummaries(ctx context.Context, learnerID uuid.UUID) ([]trend.Summary, error)
	// LatestReusableReport returns the newest approved or rewritten report
	// for the key.
	LatestReusableReport(ctx context.Context, key Key) (Report, bool, error)
	InsertPendingReport(ctx context.Context, r Report) error
	// FinalizeReport moves a pending report to its terminal state and
	// returns ErrAlreadyFinalized when it is no longer pending.
	FinalizeReport(ctx context.Context, id uuid.UUID, status Status, method Method, content string) error
}

const (
	defaultLLMTimeout   = 30 * time.Second
	defaultStoreTimeout = 5 * time.Second
)

type Timeouts struct {
	LLM   time.Duration
	Store time.Duration
}

// Generator produces one validated report per key. Concurrent requests for
// the same key share a single in-flight generation.
type Generator struct {
	store     Store
	llm       llm.Completer
	validator *Validator
	timeouts  Timeouts
	logger    *slog.Logger

	group       singleflight.Group
	now         func() time.Time
	newID       func() uuid.UUID
	onFinalized func(Report)
}

func NewGenerator(store Store, completer llm.Completer, validator *Validator, timeouts Timeouts, logger *slog.Logger) *Generator {
	if timeouts.LLM <= 0 {
		timeouts.LLM = defaultLLMTimeout
	}
	if timeouts.Store <= 0 {
		timeouts.Store = defaultStoreTimeout
	}
	return &Generator{
		store:     store,
		llm:       completer,
		validator: validator,
		timeouts:  timeouts,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.New,
	}
}

// OnFinalized registers fn to run once per finalized report, after the
// store transition and before waiting callers are released. Cached reports
// do not trigger it. Must be called before the first Generate.
func (g *Generator) OnFinalized(fn func(Report)) {
	g.onFinalized = fn
}

// Generate returns the cached report for key or produces a new one. The
// shared work is detached from ctx: a caller that gives up gets ctx.Err(),
// while the generation runs on and fills the cache for the next request.
func (g *Generator) Generate(ctx context.Context, key Key) (Report, error) {
	if err := key.Validate(); err != nil {
		return Report{}, err
	}

	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key.String(), func() (any, error) {
		return g.generate(detached, key)
	})

	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Report{}, res.Err
		}
		return res.Val.(Report), nil
	}
}

func (g *Generator) generate(ctx context.Context, key Key) (Report, error) {
	log := g.logger.With("learner_id", key.LearnerID, "scope", key.Scope, "audience", key.Audience)

	cached, ok, err := g.latest(ctx, key)
	if err != nil {
		return Report{}, err
	}
	if ok {
		log.Debug("serving cached report", "report_id", cached.ID)
		cached.Cached = true
		return cached, nil
	}

	snapshots, trends, err := g.inputs(ctx, key)
	if err != nil {
		return Report{}, err
	}
	if len(snapshots) == 0 {
		return Report{}, ErrNoPatterns
	}

	text, err := g.complete(ctx, key.Audience, snapshots, trends)
	if err != nil {
		log.Warn("report generation failed", "error", err)
		return Report{}, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	r := Report{
		ID:               g.newID(),
		LearnerID:        key.LearnerID,
		Scope:            key.Scope,
		Audience:         key.Audience,
		Content:          text,
		GenerationMethod: MethodAI,
		ValidationStatus: StatusPending,
		CreatedAt:        g.now().UTC(),
	}
	if key.SessionID != uuid.Nil {
		sid := key.SessionID
		r.SessionID = &sid
	}
	if err := g.withStore(ctx, func(ctx context.Context) error { return g.store.InsertPendingReport(ctx, r) }); err != nil {
		return Report{}, fmt.Errorf("insert pending report: %w", err)
	}

	outcome := g.validator.Validate(ctx, Generated{Content: text, Audience: key.Audience})
	r.ValidationStatus = outcome.Status()
	r.GenerationMethod = outcome.Method()
	r.Content = outcome.Content()

	if err := g.withStore(ctx, func(ctx context.Context) error {
		return g.store.FinalizeReport(ctx, r.ID, r.ValidationStatus, r.GenerationMethod, r.Content)
	}); err != nil {
		return Report{}, fmt.Errorf("finalize report: %w", err)
	}

	attrs := []any{"report_id", r.ID, "status", r.ValidationStatus, "method", r.GenerationMethod}
	if rej, ok := outcome.(Rejected); ok {
		attrs = append(attrs, "reason", rej.Reason())
	}
	log.Info("report finalized", attrs...)
	if g.onFinalized != nil {
		g.onFinalized(r)
	}
	return r, nil
}

func (g *Generator) latest(ctx context.Context, key Key) (Report, bool, error) {
	var (
		r  Report
		ok bool
	)
	err := g.withStore(ctx, func(ctx context.Context) error {
		var err error
		r, ok, err = g.store.LatestReusableReport(ctx, key)
		return err
	})
	if err != nil {
		return Report{}, false, fmt.Errorf("lookup cached report: %w", err)
	}
	return r, ok, nil
}

func (g *Generator) inputs(ctx context.Context, key Key) ([]pattern.Snapshot, []trend.Summary, error) {
	var snapshots []pattern.Snapshot
	err := g.withStore(ctx, func(ctx context.Context) error {
		var err error
		snapshots, err = g.store.SnapshotsForReport(ctx, key.LearnerID, key.SessionID)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, nil, nil
	}

	var trends []trend.Summary
	err = g.withStore(ctx, func(ctx context.Context) error {
		var err error
		trends, err = g.store.TrendSummaries(ctx, key.LearnerID)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load trends: %w", err)
	}
	return snapshots, trends, nil
}

func (g *Generator) complete(ctx context.Context, a Audience, snapshots []pattern.Snapshot, trends []trend.Summary) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeouts.LLM)
	defer cancel()

	text, err := g.llm.Complete(ctx, llm.Request{
		System:      generatorSystem(a),
		User:        generationPrompt(a, snapshots, trends),
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty completion: %w", llm.ErrUnavailable)
	}
	return text, nil
}

func (g *Generator) withStore(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeouts.Store)
	defer cancel()
	return fn(ctx)
}

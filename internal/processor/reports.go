package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/hermes"
	"github.com/MikeSquared-Agency/beacon/internal/narrative"
	"github.com/MikeSquared-Agency/beacon/internal/pattern"
	"github.com/MikeSquared-Agency/beacon/internal/store"
	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

// Trends recomputes the learner's trend summaries from every stored
// snapshot and upserts them. Fewer than trend.MinSessions snapshots yield an
// Insufficient result and leave stored summaries untouched.
func (p *Processor) Trends(ctx context.Context, learnerID uuid.UUID) (trend.Result, error) {
	var exists bool
	err := p.withStore(ctx, func(ctx context.Context) error {
		var err error
		exists, err = p.store.LearnerExists(ctx, learnerID)
		return err
	})
	if err != nil {
		return trend.Result{}, fmt.Errorf("check learner: %w", err)
	}
	if !exists {
		return trend.Result{}, store.ErrNotFound
	}
	return p.refreshTrends(ctx, learnerID)
}

func (p *Processor) refreshTrends(ctx context.Context, learnerID uuid.UUID) (trend.Result, error) {
	var snapshots []pattern.Snapshot
	err := p.withStore(ctx, func(ctx context.Context) error {
		var err error
		snapshots, err = p.store.SnapshotsForReport(ctx, learnerID, uuid.Nil)
		return err
	})
	if err != nil {
		return trend.Result{}, fmt.Errorf("load snapshots: %w", err)
	}

	res := trend.Aggregate(learnerID, snapshots, p.now())
	if res.Insufficient {
		p.logger.Debug("insufficient sessions for trends", "learner_id", learnerID, "sessions", res.SessionCount)
		return res, nil
	}

	err = p.withStore(ctx, func(ctx context.Context) error {
		return p.store.UpsertTrends(ctx, res.Summaries)
	})
	if err != nil {
		return trend.Result{}, fmt.Errorf("upsert trends: %w", err)
	}

	entries := make([]hermes.TrendEntry, 0, len(res.Summaries))
	for _, s := range res.Summaries {
		entries = append(entries, hermes.TrendEntry{PatternName: s.PatternName, TrendType: string(s.TrendType)})
	}
	p.notifier.TrendUpdated(hermes.TrendUpdated{LearnerID: learnerID.String(), Trends: entries})

	p.logger.Info("trends updated", "learner_id", learnerID, "sessions", res.SessionCount, "patterns", len(res.Summaries))
	return res, nil
}

// GenerateReport returns a validated report for key. Learner-scope reports
// refresh trends first so the narrative sees the current classification; a
// failed refresh falls back to whatever summaries are stored.
func (p *Processor) GenerateReport(ctx context.Context, key narrative.Key) (narrative.Report, error) {
	if err := key.Validate(); err != nil {
		return narrative.Report{}, err
	}
	if key.Scope == narrative.ScopeLearner {
		if _, err := p.refreshTrends(ctx, key.LearnerID); err != nil {
			p.logger.Warn("trend refresh before report failed", "learner_id", key.LearnerID, "error", err)
		}
	}
	return p.generator.Generate(ctx, key)
}

// GetReport returns a finalized report by id.
func (p *Processor) GetReport(ctx context.Context, id uuid.UUID) (narrative.Report, error) {
	var r narrative.Report
	err := p.withStore(ctx, func(ctx context.Context) error {
		var err error
		r, err = p.store.GetReport(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return narrative.Report{}, err
		}
		return narrative.Report{}, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (p *Processor) reportFinalized(r narrative.Report) {
	p.notifier.ReportFinalized(hermes.ReportFinalized{
		ReportID:         r.ID.String(),
		LearnerID:        r.LearnerID.String(),
		Scope:            string(r.Scope),
		Audience:         string(r.Audience),
		GenerationMethod: string(r.GenerationMethod),
		ValidationStatus: string(r.ValidationStatus),
	})
}

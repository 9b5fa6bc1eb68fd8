package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

// UpsertTrends replaces the learner's summary for every given pattern.
func (s *Store) UpsertTrends(ctx context.Context, summaries []trend.Summary) error {
	if len(summaries) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range summaries {
		_, err := tx.Exec(ctx, `
			INSERT INTO trend_summaries (learner_id, pattern_name, trend_type, session_count, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (learner_id, pattern_name)
			DO UPDATE SET
				trend_type = $3,
				session_count = $4,
				updated_at = $5`,
			t.LearnerID, t.PatternName, string(t.TrendType), t.SessionCount, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert trend: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) TrendSummaries(ctx context.Context, learnerID uuid.UUID) ([]trend.Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT learner_id, pattern_name, trend_type, session_count, updated_at
		FROM trend_summaries
		WHERE learner_id = $1
		ORDER BY pattern_name`,
		learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	defer rows.Close()

	var out []trend.Summary
	for rows.Next() {
		var (
			t    trend.Summary
			kind string
		)
		if err := rows.Scan(&t.LearnerID, &t.PatternName, &kind, &t.SessionCount, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		t.TrendType = trend.Type(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/pattern"
)

// CreateSession writes session metadata. Events are never stored.
func (s *Store) CreateSession(ctx context.Context, id, learnerID uuid.UUID, activityKind string, createdAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, learner_id, activity_kind, created_at)
		VALUES ($1, $2, $3, $4)`,
		id, learnerID, activityKind, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// CompleteSession stamps completion and, when the session produced one,
// writes its snapshot in the same transaction.
func (s *Store) CompleteSession(ctx context.Context, id uuid.UUID, completedAt time.Time, snap *pattern.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE sessions SET completed_at = $2
		WHERE id = $1 AND completed_at IS NULL`,
		id, completedAt,
	)
	if err != nil {
		return fmt.Errorf("stamp session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if snap != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO pattern_snapshots (id, session_id, learner_id, pattern_name, learning_impact, support_focus, confidence, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			snap.ID, snap.SessionID, snap.LearnerID, snap.PatternName, snap.LearningImpact, snap.SupportFocus, string(snap.Confidence), snap.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

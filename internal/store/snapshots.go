package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/pattern"
)

// SnapshotsForReport returns a learner's snapshots oldest first, restricted
// to one session unless sessionID is uuid.Nil.
func (s *Store) SnapshotsForReport(ctx context.Context, learnerID, sessionID uuid.UUID) ([]pattern.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, learner_id, pattern_name, learning_impact, support_focus, confidence, created_at
		FROM pattern_snapshots
		WHERE learner_id = $1 AND ($2::uuid IS NULL OR session_id = $2)
		ORDER BY created_at, id`,
		learnerID, nullUUID(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []pattern.Snapshot
	for rows.Next() {
		var (
			snap       pattern.Snapshot
			confidence string
		)
		if err := rows.Scan(&snap.ID, &snap.SessionID, &snap.LearnerID, &snap.PatternName,
			&snap.LearningImpact, &snap.SupportFocus, &confidence, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Confidence = pattern.Confidence(confidence)
		out = append(out, snap)
	}
	return out, rows.Err()
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/beacon/internal/narrative"
)

const reportColumns = `id, learner_id, report_scope, source_session_id, audience, content, generation_method, validation_status, created_at`

func (s *Store) InsertPendingReport(ctx context.Context, r narrative.Report) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)`,
		r.ID, r.LearnerID, string(r.Scope), r.SessionID, string(r.Audience), r.Content, string(r.GenerationMethod), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// FinalizeReport is the only transition out of pending. The status guard
// makes a second finalize a no-op reported as narrative.ErrAlreadyFinalized.
func (s *Store) FinalizeReport(ctx context.Context, id uuid.UUID, status narrative.Status, method narrative.Method, content string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reports
		SET validation_status = $2, generation_method = $3, content = $4, finalized_at = now()
		WHERE id = $1 AND validation_status = 'pending'`,
		id, string(status), string(method), content,
	)
	if err != nil {
		return fmt.Errorf("finalize report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return narrative.ErrAlreadyFinalized
	}
	return nil
}

// LatestReusableReport returns the newest approved or rewritten report for
// the key. Rejected reports are served once but never reused.
func (s *Store) LatestReusableReport(ctx context.Context, key narrative.Key) (narrative.Report, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE learner_id = $1
		  AND report_scope = $2
		  AND source_session_id IS NOT DISTINCT FROM $3
		  AND audience = $4
		  AND validation_status IN ('approved', 'rewritten')
		ORDER BY created_at DESC
		LIMIT 1`,
		key.LearnerID, string(key.Scope), nullUUID(key.SessionID), string(key.Audience),
	)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return narrative.Report{}, false, nil
	}
	if err != nil {
		return narrative.Report{}, false, fmt.Errorf("select cached report: %w", err)
	}
	return r, true, nil
}

// GetReport returns a finalized report. Pending rows are invisible.
func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (narrative.Report, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE id = $1 AND validation_status <> 'pending'`,
		id,
	)
	r, err := scanReport(row)
	if err != nil {
		if err = notFound(err); errors.Is(err, ErrNotFound) {
			return narrative.Report{}, err
		}
		return narrative.Report{}, fmt.Errorf("select report: %w", err)
	}
	return r, nil
}

func scanReport(row pgx.Row) (narrative.Report, error) {
	var (
		r                               narrative.Report
		scope, audience, method, status string
	)
	err := row.Scan(&r.ID, &r.LearnerID, &scope, &r.SessionID, &audience, &r.Content, &method, &status, &r.CreatedAt)
	if err != nil {
		return narrative.Report{}, err
	}
	r.Scope = narrative.Scope(scope)
	r.Audience = narrative.Audience(audience)
	r.GenerationMethod = narrative.Method(method)
	r.ValidationStatus = narrative.Status(status)
	return r, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrCodeTaken is returned when a learner code already exists.
var ErrCodeTaken = errors.New("learner code already registered")

// CreateLearner registers a learner under a fresh access code.
func (s *Store) CreateLearner(ctx context.Context, code string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO learners (id, learner_code, created_at)
		VALUES ($1, $2, now())`,
		id, code,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, ErrCodeTaken
		}
		return uuid.Nil, fmt.Errorf("insert learner: %w", err)
	}
	return id, nil
}

// LearnerIDByCode resolves a normalized access code.
func (s *Store) LearnerIDByCode(ctx context.Context, code string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id FROM learners WHERE learner_code = $1`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("select learner by code: %w", err)
	}
	return id, true, nil
}

func (s *Store) LearnerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM learners WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check learner: %w", err)
	}
	return exists, nil
}

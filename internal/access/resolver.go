package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrUnknownCode = errors.New("unknown learner code")
)

// Learners maps a normalized code to its learner.
type Learners interface {
	LearnerIDByCode(ctx context.Context, code string) (uuid.UUID, bool, error)
}

// Resolver throttles and resolves learner codes for unauthenticated routes.
type Resolver struct {
	limiter  Limiter
	learners Learners
	logger   *slog.Logger
}

func NewResolver(limiter Limiter, learners Learners, logger *slog.Logger) *Resolver {
	return &Resolver{limiter: limiter, learners: learners, logger: logger}
}

// Resolve checks the code's rate window before looking it up, so throttled
// callers learn nothing about whether a code exists. Malformed codes are
// rejected up front and never occupy a counter.
func (r *Resolver) Resolve(ctx context.Context, code string) (uuid.UUID, error) {
	norm, ok := Normalize(code)
	if !ok {
		r.logger.Info("malformed learner code rejected")
		return uuid.Nil, ErrUnknownCode
	}

	allowed, err := r.limiter.Allow(ctx, norm)
	if err != nil {
		return uuid.Nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		r.logger.Warn("learner code throttled", "code", norm)
		return uuid.Nil, ErrRateLimited
	}

	id, found, err := r.learners.LearnerIDByCode(ctx, norm)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup learner code: %w", err)
	}
	if !found {
		r.logger.Info("unknown learner code", "code", norm)
		return uuid.Nil, ErrUnknownCode
	}
	return id, nil
}

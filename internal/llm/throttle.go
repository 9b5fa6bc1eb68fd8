package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled caps the outbound request rate to a provider. Waiting respects
// the caller's context, so a timed-out stage never queues forever.
type Throttled struct {
	next    Completer
	limiter *rate.Limiter
}

// NewThrottled allows rps requests per second with a burst of one. A
// non-positive rps disables throttling.
func NewThrottled(next Completer, rps float64) *Throttled {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, 1)}
}

func (t *Throttled) Complete(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for llm slot: %w: %w", ErrUnavailable, err)
	}
	return t.next.Complete(ctx, req)
}

package session

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically evicts sessions that outlived their TTL.
type Reaper struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewReaper(store *Store, ttl, interval time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{store: store, ttl: ttl, interval: interval, logger: logger}
}

// Run sweeps on a fixed interval until ctx is cancelled. It only touches
// in-memory state, so no sweep can block on the database or the LLM.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("session reaper started", "ttl", r.ttl.String(), "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs a single eviction pass.
func (r *Reaper) Sweep() (abandoned, tombstones int) {
	abandoned, tombstones = r.store.Evict(r.ttl)
	if abandoned > 0 || tombstones > 0 {
		r.logger.Info("expired sessions purged",
			"abandoned", abandoned,
			"tombstones", tombstones,
			"remaining", r.store.Len(),
		)
	}
	return abandoned, tombstones
}

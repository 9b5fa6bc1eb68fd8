package access

import (
	"context"
	"sync"
	"time"
)

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is a single-process fixed-window counter. Lookup, reset and
// count happen under one lock so a pruned window can never be counted twice.
type MemoryLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	nextPrune time.Time
}

func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextPrune) {
		l.prune(now)
		l.nextPrune = now.Add(l.period)
	}
	w, ok := l.windows[key]
	if !ok {
		w = &window{start: now}
		l.windows[key] = w
	}
	if now.Sub(w.start) >= l.period {
		w.start = now
		w.count = 0
	}
	if w.count >= l.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// prune drops windows that ended; caller holds l.mu.
func (l *MemoryLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, key)
		}
	}
}

func (l *MemoryLimiter) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

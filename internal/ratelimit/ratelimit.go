// Package ratelimit implements the sliding-window limiter shared by login
// attempts and pairing confirmation. The primary implementation is an
// in-memory, mutex-guarded map of key to recent-attempt timestamps; state is
// intentionally process-local and reset on restart. An optional Redis-backed
// implementation is available for deployments that want the window to
// survive a restart or to be shared across replicas of the API surface.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a keyed action may proceed under a sliding window.
type Limiter interface {
	// Allow reports whether an attempt for key is permitted right now. A
	// permitted attempt is recorded immediately; denied attempts are not.
	Allow(ctx context.Context, key string) (bool, error)
}

// Window is an in-memory sliding-window Limiter. Entries older than the
// window are pruned on every call for the touched key; if the remaining
// count is already at Limit, the attempt is rejected.
type Window struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	window   time.Duration
	limit    int
	now      func() time.Time
}

// NewWindow returns a Window that permits at most limit attempts per key in
// any rolling window duration.
func NewWindow(window time.Duration, limit int) *Window {
	return &Window{
		attempts: make(map[string][]time.Time),
		window:   window,
		limit:    limit,
		now:      time.Now,
	}
}

// Allow prunes expired timestamps for key, rejects if limit attempts remain
// within the window, otherwise records now and allows.
func (w *Window) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	kept := w.attempts[key][:0]
	for _, t := range w.attempts[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= w.limit {
		w.attempts[key] = kept
		return false, nil
	}

	w.attempts[key] = append(kept, now)
	return true, nil
}

// Reset clears the recorded attempts for key. Exposed for tests.
func (w *Window) Reset(key string) {
	w.mu.Lock()
	delete(w.attempts, key)
	w.mu.Unlock()
}

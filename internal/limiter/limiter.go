// Package limiter provides the per-user admission controls for the bot:
// a fixed-window hit limiter and a pending-request tracker. Both keep
// process-lifetime state only; counters reset on restart.
package limiter

import (
	"sync"
	"time"
)

// Window is a sliding-window rate limiter keyed by user ID. Each user gets
// an ordered slice of accepted hit timestamps; entries older than the window
// are trimmed lazily on the next check.
type Window struct {
	capacity int
	window   time.Duration

	mu   sync.Mutex
	hits map[int64][]time.Time

	now func() time.Time // overridable for tests
}

// NewWindow creates a limiter allowing capacity hits per user per window.
func NewWindow(capacity int, window time.Duration) *Window {
	return &Window{
		capacity: capacity,
		window:   window,
		hits:     make(map[int64][]time.Time),
		now:      time.Now,
	}
}

// Allow records a hit for the user if they are under capacity. When denied,
// retryAfter is the number of seconds until the oldest remaining hit leaves
// the window, rounded up so callers can show it verbatim.
func (w *Window) Allow(userID int64) (ok bool, retryAfter int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	hits := w.hits[userID]
	// Hits are chronologically ordered, so eviction is a prefix trim.
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		hits = append(hits[:0], hits[i:]...)
	}

	if len(hits) >= w.capacity {
		w.hits[userID] = hits
		wait := w.window - now.Sub(hits[0])
		return false, int(wait/time.Second) + 1
	}

	w.hits[userID] = append(hits, now)
	return true, 0
}

// Count returns the number of hits currently inside the user's window.
func (w *Window) Count(userID int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.window)
	n := 0
	for _, ts := range w.hits[userID] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

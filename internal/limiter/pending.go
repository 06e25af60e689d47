package limiter

import "sync"

// PendingTracker bounds how many jobs a single user can have in flight at
// once, independent of the hit-rate limiter. Admission reserves a slot that
// the job worker releases when the job reaches a terminal state.
type PendingTracker struct {
	ceiling int

	mu     sync.Mutex
	counts map[int64]int
}

// NewPendingTracker creates a tracker with the given per-user ceiling.
func NewPendingTracker(ceiling int) *PendingTracker {
	return &PendingTracker{
		ceiling: ceiling,
		counts:  make(map[int64]int),
	}
}

// TryAdmit reserves a pending slot for the user. It returns false when the
// user is already at the ceiling; the caller must not enqueue a job then.
func (t *PendingTracker) TryAdmit(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.counts[userID] >= t.ceiling {
		return false
	}
	t.counts[userID]++
	return true
}

// Release frees one pending slot. The count saturates at zero so a stray
// double release cannot drive it negative.
func (t *PendingTracker) Release(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.counts[userID] > 0 {
		t.counts[userID]--
	}
	if t.counts[userID] == 0 {
		delete(t.counts, userID)
	}
}

// Pending returns the user's current in-flight count.
func (t *PendingTracker) Pending(userID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[userID]
}

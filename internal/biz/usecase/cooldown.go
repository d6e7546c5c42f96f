package usecase

import (
	"sync"
	"time"
)

// CooldownTracker suppresses repeated emission of the same alert key within
// a window. Detectors re-report a standing condition on every tick; the
// tracker turns that stream into at most one emission per window. State is
// in-memory only and resets on restart.
type CooldownTracker struct {
	window time.Duration

	mu      sync.RWMutex
	entries map[string]time.Time // alert key -> last emission
}

// NewCooldownTracker creates a tracker with the given window
func NewCooldownTracker(window time.Duration) *CooldownTracker {
	return &CooldownTracker{
		window:  window,
		entries: make(map[string]time.Time),
	}
}

// ShouldEmit reports whether key is outside its cooldown window
func (t *CooldownTracker) ShouldEmit(key string, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	last, exists := t.entries[key]
	if !exists {
		return true
	}
	return now.Sub(last) >= t.window
}

// MarkEmitted records an emission for key
func (t *CooldownTracker) MarkEmitted(key string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = now

	// Clean up expired entries while we hold the lock to prevent the map
	// from growing without bound
	cutoff := now.Add(-3 * t.window)
	for k, ts := range t.entries {
		if ts.Before(cutoff) {
			delete(t.entries, k)
		}
	}
}

// Len returns the number of tracked keys
func (t *CooldownTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

package channels

import (
	"sync"
	"time"
)

// maxTrackedSenders caps the number of tracked keys so a flood of distinct
// senders cannot grow the map without bound.
const maxTrackedSenders = 4096

type senderWindow struct {
	start time.Time
	count int
}

// SenderRateLimiter allows at most Max hits per key within Window, using a
// fixed window that restarts on the first hit after it expires.
// Safe for concurrent use.
type SenderRateLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*senderWindow
}

// NewSenderRateLimiter returns a limiter admitting max hits per window.
// A nil limiter (or max <= 0) allows everything.
func NewSenderRateLimiter(max int, window time.Duration) *SenderRateLimiter {
	if max <= 0 {
		return nil
	}
	return &SenderRateLimiter{
		window:  window,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*senderWindow),
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (r *SenderRateLimiter) Allow(key string) bool {
	if r == nil {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if len(r.entries) >= maxTrackedSenders {
		for k, e := range r.entries {
			if now.Sub(e.start) >= r.window {
				delete(r.entries, k)
			}
		}
		// Hard eviction if still at cap (FIFO-ish via map iteration)
		for len(r.entries) >= maxTrackedSenders {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[key]
	if !ok || now.Sub(e.start) >= r.window {
		r.entries[key] = &senderWindow{start: now, count: 1}
		return true
	}

	e.count++
	return e.count <= r.max
}

// Tracked returns the number of keys currently held.
func (r *SenderRateLimiter) Tracked() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

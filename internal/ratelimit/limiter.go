// Package ratelimit implements a per-session sliding window rate limiter.
// It protects the provider gateways from rapid-fire submissions; the usage
// quota is metered separately.
package ratelimit

import (
	"sync"
	"time"
)

// WindowDuration is the sliding window size
const WindowDuration = time.Minute

// window holds the in-window submission times for one session, oldest first
type window []time.Time

// pruned drops entries at or before the cutoff and returns the survivors
func (w window) pruned(cutoff time.Time) window {
	kept := w[:0]
	for _, ts := range w {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// Limiter tracks query submission times per session and rejects sessions
// that exceed the per-minute limit. A limit of zero disables it.
type Limiter struct {
	limit    int
	sessions map[string]window
	now      func() time.Time
	mu       sync.Mutex
}

// New creates a limiter allowing limit queries per minute per session.
// limit <= 0 means rate limiting is disabled.
func New(limit int) *Limiter {
	return &Limiter{
		limit:    limit,
		sessions: make(map[string]window),
		now:      time.Now,
	}
}

// Allow records a submission from the session and reports whether it fits
// inside the window. Rejected submissions are not recorded, so a session
// hammering the limiter does not push its own recovery further out.
func (l *Limiter) Allow(sessionID string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.sessions[sessionID].pruned(now.Add(-WindowDuration))
	if len(w) >= l.limit {
		l.sessions[sessionID] = w
		return false
	}
	l.sessions[sessionID] = append(w, now)
	return true
}

// Remaining returns how many queries the session has left in the current
// window, or -1 when unlimited
func (l *Limiter) Remaining(sessionID string) int {
	if l.limit <= 0 {
		return -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.sessions[sessionID].pruned(l.now().Add(-WindowDuration))
	l.sessions[sessionID] = w
	if r := l.limit - len(w); r > 0 {
		return r
	}
	return 0
}

// RetryAfter returns how long the session must wait before its next query
// can be accepted. Zero means a query would be accepted right now.
func (l *Limiter) RetryAfter(sessionID string) time.Duration {
	if l.limit <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.sessions[sessionID].pruned(now.Add(-WindowDuration))
	l.sessions[sessionID] = w
	if len(w) < l.limit {
		return 0
	}
	// The window frees a slot when its oldest entry expires
	return w[0].Add(WindowDuration).Sub(now)
}

// Reset clears rate limit data for a session
func (l *Limiter) Reset(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
}

// ResetAll clears all rate limit data
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = make(map[string]window)
}

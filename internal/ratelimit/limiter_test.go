package ratelimit

import (
	"testing"
	"time"
)

// fakeClock lets tests move the limiter's notion of now
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedLimiter(limit int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(limit)
	l.now = clock.now
	return l, clock
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := New(0)

	for i := 0; i < 100; i++ {
		if !limiter.Allow("s1") {
			t.Fatal("disabled limiter should always allow")
		}
	}
	if limiter.Remaining("s1") != -1 {
		t.Error("disabled limiter should report unlimited")
	}
	if limiter.RetryAfter("s1") != 0 {
		t.Error("disabled limiter should never ask callers to wait")
	}
}

func TestLimiter_UnderLimit(t *testing.T) {
	limiter := New(5)

	for i := 0; i < 5; i++ {
		if !limiter.Allow("s1") {
			t.Errorf("query %d should be allowed", i+1)
		}
	}
}

func TestLimiter_OverLimit(t *testing.T) {
	limiter := New(3)

	for i := 0; i < 3; i++ {
		limiter.Allow("s1")
	}
	if limiter.Allow("s1") {
		t.Error("query over limit should be blocked")
	}
	if limiter.Remaining("s1") != 0 {
		t.Errorf("remaining = %d, want 0", limiter.Remaining("s1"))
	}
}

func TestLimiter_SeparateSessions(t *testing.T) {
	limiter := New(2)

	limiter.Allow("s1")
	limiter.Allow("s1")

	if limiter.Allow("s1") {
		t.Error("s1 should be blocked")
	}
	if !limiter.Allow("s2") {
		t.Error("s2 should be allowed")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	limiter, clock := newClockedLimiter(2)

	limiter.Allow("s1")
	clock.advance(30 * time.Second)
	limiter.Allow("s1")
	if limiter.Allow("s1") {
		t.Error("should be blocked initially")
	}

	// First entry expires 30s from here, second still counts
	clock.advance(31 * time.Second)
	if !limiter.Allow("s1") {
		t.Error("should be allowed after window slides")
	}
	if limiter.Allow("s1") {
		t.Error("window should be full again")
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	limiter, clock := newClockedLimiter(2)

	if limiter.RetryAfter("s1") != 0 {
		t.Error("fresh session should not wait")
	}

	limiter.Allow("s1")
	clock.advance(10 * time.Second)
	limiter.Allow("s1")

	// Window is full; the oldest entry frees up 50s from now
	if got := limiter.RetryAfter("s1"); got != 50*time.Second {
		t.Errorf("RetryAfter = %s, want 50s", got)
	}

	clock.advance(50 * time.Second)
	if got := limiter.RetryAfter("s1"); got != 0 {
		t.Errorf("RetryAfter after expiry = %s, want 0", got)
	}
}

func TestLimiter_RejectedQueriesDoNotExtendWait(t *testing.T) {
	limiter, clock := newClockedLimiter(1)

	limiter.Allow("s1")
	clock.advance(20 * time.Second)
	for i := 0; i < 5; i++ {
		if limiter.Allow("s1") {
			t.Fatal("should be blocked")
		}
	}
	// Hammering while blocked must not reset the 40s left on the window
	if got := limiter.RetryAfter("s1"); got != 40*time.Second {
		t.Errorf("RetryAfter = %s, want 40s", got)
	}
}

func TestLimiter_ExpiredEntriesPruned(t *testing.T) {
	limiter, clock := newClockedLimiter(10)

	limiter.Allow("s1")
	clock.advance(2 * time.Minute)
	limiter.Allow("s1")

	limiter.mu.Lock()
	entries := len(limiter.sessions["s1"])
	limiter.mu.Unlock()

	if entries != 1 {
		t.Errorf("expected 1 entry after pruning, got %d", entries)
	}
}

func TestLimiter_Reset(t *testing.T) {
	limiter := New(1)
	limiter.Allow("s1")
	if limiter.Allow("s1") {
		t.Error("should be blocked")
	}

	limiter.Reset("s1")
	if !limiter.Allow("s1") {
		t.Error("should be allowed after reset")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	limiter := New(100)
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(id string) {
			for j := 0; j < 20; j++ {
				limiter.Allow(id)
			}
			done <- true
		}("s" + string(rune('0'+i)))
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

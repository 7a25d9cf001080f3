package channels

import (
	"strconv"
	"testing"
	"time"
)

func TestSenderRateLimiter_WindowAndReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewSenderRateLimiter(3, time.Minute)
	r.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !r.Allow("42") {
			t.Fatalf("hit %d rejected", i+1)
		}
	}
	if r.Allow("42") {
		t.Fatal("4th hit within window allowed")
	}
	if !r.Allow("43") {
		t.Fatal("other sender must have its own window")
	}

	now = now.Add(time.Minute)
	if !r.Allow("42") {
		t.Fatal("hit after window expiry rejected")
	}
}

func TestSenderRateLimiter_Disabled(t *testing.T) {
	r := NewSenderRateLimiter(0, time.Minute)
	if r != nil {
		t.Fatal("max <= 0 should return nil limiter")
	}
	for i := 0; i < 100; i++ {
		if !r.Allow("42") {
			t.Fatal("nil limiter must allow everything")
		}
	}
	if r.Tracked() != 0 {
		t.Errorf("Tracked() = %d", r.Tracked())
	}
}

func TestSenderRateLimiter_BoundedKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewSenderRateLimiter(1, time.Minute)
	r.now = func() time.Time { return now }

	for i := 0; i < maxTrackedSenders+100; i++ {
		r.Allow(strconv.Itoa(i))
	}
	if got := r.Tracked(); got > maxTrackedSenders {
		t.Fatalf("tracked %d keys, cap is %d", got, maxTrackedSenders)
	}
}

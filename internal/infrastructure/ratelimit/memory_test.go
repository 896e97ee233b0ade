package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func TestMemoryLimiterWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	l := NewMemoryLimiter(3, time.Minute)
	l.now = func() time.Time { return now }
	key := Key("stripe", "10.0.0.1")

	for i := 1; i <= 3; i++ {
		reached, _ := l.Hit(ctx, key)
		if reached != (i == 3) {
			t.Fatalf("hit %d: unexpected reached=%v", i, reached)
		}
	}
	if exceeded, _ := l.Exceeded(ctx, key); !exceeded {
		t.Fatal("expected limit to be exceeded")
	}
	if exceeded, _ := l.Exceeded(ctx, Key("stripe", "10.0.0.2")); exceeded {
		t.Fatal("other clients must not share the counter")
	}

	now = now.Add(time.Minute)
	if exceeded, _ := l.Exceeded(ctx, key); exceeded {
		t.Fatal("expected counter to reset after the window")
	}
}

func TestMemoryLimiterEvictsIdleKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	l := NewMemoryLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		_, _ = l.Hit(ctx, Key("paystack", fmt.Sprintf("198.51.100.%d", i)))
	}
	if n := l.size(); n != 100 {
		t.Fatalf("expected 100 live buckets, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	_, _ = l.Hit(ctx, Key("paystack", "192.0.2.1"))
	if n := l.size(); n != 1 {
		t.Fatalf("expected idle buckets to be evicted, got %d", n)
	}
}

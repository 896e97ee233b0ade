package ratelimit

import (
	"context"
	"sync"
	"time"
)

type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int64
	window  time.Duration
	buckets map[string]*bucket
	// nextSweep is when Hit next drops every expired bucket.
	nextSweep time.Time
	now       func() time.Time
}

type bucket struct {
	count   int64
	resetAt time.Time
}

func NewMemoryLimiter(limit int64, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Exceeded(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.current(key)
	return b != nil && b.count >= l.limit, nil
}

func (l *MemoryLimiter) Hit(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep()
	b := l.current(key)
	if b == nil {
		b = &bucket{resetAt: l.now().Add(l.window)}
		l.buckets[key] = b
	}
	b.count++
	return b.count >= l.limit, nil
}

// current returns the live bucket for key, dropping an expired one.
func (l *MemoryLimiter) current(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		return nil
	}
	if !l.now().Before(b.resetAt) {
		delete(l.buckets, key)
		return nil
	}
	return b
}

// sweep bounds the map to keys hit within roughly the last two windows.
func (l *MemoryLimiter) sweep() {
	now := l.now()
	if now.Before(l.nextSweep) {
		return
	}
	for key, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, key)
		}
	}
	l.nextSweep = now.Add(l.window)
}

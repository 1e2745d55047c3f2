// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	// DefaultRequests is the number of requests allowed per window
	DefaultRequests = 60

	// DefaultWindow is the length of a rate limit window
	DefaultWindow = time.Minute
)

// Decision is the outcome of a single rate limit check
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole number of seconds, rounded up, until
// the current window resets, never less than one second
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	return max(secs, 1)
}

// Limiter admits or rejects a request for the given client key
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed window limiter holding its state in process
// memory, the window of a key starts with its first request
type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	now       func() time.Time
	nextSweep time.Time
	items     map[string]window
}

// NewMemory creates an in-memory limiter admitting limit requests per
// window, non positive values fall back to the defaults
func NewMemory(limit int, win time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultRequests
	}
	if win <= 0 {
		win = DefaultWindow
	}
	return &MemoryLimiter{
		limit:  limit,
		window: win,
		now:    time.Now,
		items:  make(map[string]window),
	}
}

// Allow counts the request against the key and reports whether it is
// within the limit
func (l *MemoryLimiter) Allow(_ context.Context, key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	curr, ok := l.items[key]
	if !ok || !now.Before(curr.resetAt) {
		curr = window{resetAt: now.Add(l.window)}
	}
	curr.count++
	l.items[key] = curr

	return Decision{
		Allowed:   curr.count <= l.limit,
		Count:     curr.count,
		Limit:     l.limit,
		Remaining: max(l.limit-curr.count, 0),
		ResetAt:   curr.resetAt,
	}
}

// Len returns the number of tracked keys
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// drops expired windows, at most once per window length so that the
// cost is amortized over the requests of the window
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, v := range l.items {
		if !now.Before(v.resetAt) {
			delete(l.items, k)
		}
	}
	l.nextSweep = now.Add(l.window)
}

var _ Limiter = (*MemoryLimiter)(nil)

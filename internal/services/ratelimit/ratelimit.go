// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit provides a process-local attempt counter per key.
//
// State lives in memory and is not shared between processes. It deters
// brute force and retries; it is not a security boundary.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Result is the outcome of Check.
type Result struct {
	ResetTime         time.Time
	RemainingAttempts int
	Allowed           bool
}

// RetryAfter is the time left until the window resets, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

type record struct {
	resetAt time.Time
	count   int
}

// Limiter counts attempts per key within a window that starts at the
// first counted attempt.
type Limiter struct {
	now         func() time.Time
	records     map[string]*record
	name        string
	window      time.Duration
	maxAttempts int
	mu          sync.Mutex
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithName labels the limiter in log output.
func WithName(name string) Option {
	return func(l *Limiter) { l.name = name }
}

// New creates a Limiter allowing maxAttempts per window.
func New(maxAttempts int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		now:         time.Now,
		records:     make(map[string]*record),
		window:      window,
		maxAttempts: maxAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the label set with WithName.
func (l *Limiter) Name() string { return l.name }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// MaxAttempts returns the configured attempt budget.
func (l *Limiter) MaxAttempts() int { return l.maxAttempts }

// Check reports whether another attempt for key is allowed. It never
// mutates state; an expired record reads as a fresh window.
func (l *Limiter) Check(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || !now.Before(rec.resetAt) {
		return Result{
			Allowed:           l.maxAttempts > 0,
			RemainingAttempts: max(l.maxAttempts, 0),
			ResetTime:         now.Add(l.window),
		}
	}

	return Result{
		Allowed:           rec.count < l.maxAttempts,
		RemainingAttempts: max(l.maxAttempts-rec.count, 0),
		ResetTime:         rec.resetAt,
	}
}

// Increment counts one attempt for key, opening a new window when none
// is active. Call it after the gated action was attempted.
func (l *Limiter) Increment(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || !now.Before(rec.resetAt) {
		l.records[key] = &record{count: 1, resetAt: now.Add(l.window)}
		return
	}
	rec.count++
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}

// Cleanup drops expired records and returns how many were removed.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, rec := range l.records {
		if !now.Before(rec.resetAt) {
			delete(l.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Run calls Cleanup every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				slog.Debug("rate limit records purged", "limiter", l.name, "count", n, "tracked", l.Len())
			}
		}
	}
}

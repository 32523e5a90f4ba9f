// Package ratelimit bounds how often a named client action may fire within a
// fixed time window. It is an advisory guard that reduces accidental
// hammering; the authoritative limit belongs on the server.
//
// Windows are fixed, not sliding: once more than the window duration has
// elapsed since a key's window started, the next call opens a new window with
// a count of one. Bursts of up to twice the limit are therefore possible across
// a window boundary.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Option customises a Limiter.
type Option func(*Limiter)

// WithStore injects the window store. Nil keeps the default in-memory store.
func WithStore(store Store) Option {
	return func(l *Limiter) {
		if store != nil {
			l.store = store
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger attaches a logger for blocked and misconfigured calls.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Limiter records calls per action key. Limiters sharing a Store share
// budgets, so unrelated callers using the same key draw from one window.
type Limiter struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// New constructs a Limiter backed by a fresh MemoryStore unless WithStore is
// supplied.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(l)
	}
	if l.store == nil {
		l.store = NewMemoryStore()
	}
	return l
}

var (
	defaultOnce    sync.Once
	defaultLimiter *Limiter
)

// Default returns the process-wide limiter.
func Default() *Limiter {
	defaultOnce.Do(func() {
		defaultLimiter = New()
	})
	return defaultLimiter
}

// CheckAndRecord reports whether another call for key is allowed in the
// current window and, if so, counts it. Blocked calls are not counted.
// Non-positive maxRequests or window values block every call.
func (l *Limiter) CheckAndRecord(key string, maxRequests int, window time.Duration) bool {
	key = strings.TrimSpace(key)
	if maxRequests <= 0 || window <= 0 {
		l.logger.Warn("rate limit misconfigured",
			zap.String("action", key),
			zap.Int("max_requests", maxRequests),
			zap.Duration("window", window),
		)
		return false
	}

	now := l.now()
	allowed := false
	count := 0
	l.store.Update(key, func(current Window, ok bool) (Window, bool) {
		if !ok || now.Sub(current.Start) > window {
			allowed = true
			return Window{Start: now, Count: 1, Length: window}, true
		}
		if current.Count >= maxRequests {
			count = current.Count
			return current, false
		}
		allowed = true
		current.Count++
		current.Length = window
		return current, true
	})

	if !allowed {
		l.logger.Debug("rate limit exceeded",
			zap.String("action", key),
			zap.Int("count", count),
			zap.Int("max_requests", maxRequests),
		)
	}
	return allowed
}

// Remaining reports how many calls key may still make in its current window
// without recording anything.
func (l *Limiter) Remaining(key string, maxRequests int, window time.Duration) int {
	if maxRequests <= 0 || window <= 0 {
		return 0
	}

	current, ok := l.store.Load(strings.TrimSpace(key))
	if !ok || l.now().Sub(current.Start) > window {
		return maxRequests
	}
	if current.Count >= maxRequests {
		return 0
	}
	return maxRequests - current.Count
}

// RetryAfter returns how long until key's current window expires, or zero
// when no window is open.
func (l *Limiter) RetryAfter(key string, window time.Duration) time.Duration {
	current, ok := l.store.Load(strings.TrimSpace(key))
	if !ok {
		return 0
	}
	wait := current.Start.Add(window).Sub(l.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Reset forgets the window for key.
func (l *Limiter) Reset(key string) {
	l.store.Delete(strings.TrimSpace(key))
}

// Prune forgets every window that has already closed and returns how many
// were removed. Long-running processes with per-client keys should call it
// periodically.
func (l *Limiter) Prune() int {
	return l.store.Prune(l.now())
}

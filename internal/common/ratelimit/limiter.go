// Package ratelimit enforces fixed-window request limits.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"judgeboard/internal/common/cache"
	pkgerrors "judgeboard/pkg/errors"
)

const defaultRedisTimeout = 200 * time.Millisecond

// Limiter reports whether one more hit on key fits in max per window.
// A rejected hit returns a TooManyRequests error.
type Limiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) error
}

// RedisLimiter keeps fixed-window counters in Redis so limits hold across instances.
type RedisLimiter struct {
	cache        cache.CounterOps
	window       time.Duration
	redisTimeout time.Duration
}

func NewRedisLimiter(counter cache.CounterOps, window time.Duration, redisTimeout time.Duration) *RedisLimiter {
	if redisTimeout <= 0 {
		redisTimeout = defaultRedisTimeout
	}
	return &RedisLimiter{cache: counter, window: window, redisTimeout: redisTimeout}
}

func (s *RedisLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if s.cache == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = s.window
	}

	ctxCache, cancel := context.WithTimeout(ctx, s.redisTimeout)
	defer cancel()

	acquired, err := s.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	var count int64
	if acquired {
		count = 1
	} else {
		count, err = s.cache.Incr(ctxCache, key)
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
		}
		ttl, ttlErr := s.cache.TTL(ctxCache, key)
		if ttlErr == nil && ttl <= 0 {
			_ = s.cache.Expire(ctxCache, key, window)
		}
	}
	if int(count) > max {
		return exceeded(key)
	}
	return nil
}

type bucket struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is the single-process counterpart of RedisLimiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	windows map[string]*bucket
}

func NewMemoryLimiter(defaultWindow time.Duration) *MemoryLimiter {
	return newMemoryLimiter(defaultWindow, time.Now)
}

func newMemoryLimiter(defaultWindow time.Duration, now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		window:  defaultWindow,
		now:     now,
		windows: make(map[string]*bucket),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, max int, win time.Duration) error {
	if max <= 0 {
		return nil
	}
	if win <= 0 {
		win = m.window
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		m.sweep(now)
		w = &bucket{resetAt: now.Add(win)}
		m.windows[key] = w
	}
	w.count++
	if w.count > max {
		return exceeded(key)
	}
	return nil
}

// sweep drops expired windows; called with mu held.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
}

func exceeded(key string) error {
	return pkgerrors.New(pkgerrors.TooManyRequests).WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
}

package ratelimit

import "time"

func NewMemoryLimiterWithClock(defaultWindow time.Duration, now func() time.Time) *MemoryLimiter {
	return newMemoryLimiter(defaultWindow, now)
}

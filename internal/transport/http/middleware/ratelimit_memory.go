package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const memoryLimiterMaxKeys = 10000

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket per key: limit requests per
// window, refilled continuously.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	every   rate.Limit
	buckets map[string]*memoryBucket
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	limit = max(limit, 1)
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		every:   rate.Every(window / time.Duration(limit)),
		buckets: map[string]*memoryBucket{},
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.buckets[key]
	if !ok {
		if len(m.buckets) >= memoryLimiterMaxKeys {
			m.prune(now)
		}
		bucket = &memoryBucket{limiter: rate.NewLimiter(m.every, m.limit)}
		m.buckets[key] = bucket
	}
	bucket.lastSeen = now

	allowed := bucket.limiter.AllowN(now, 1)
	remaining := int(bucket.limiter.TokensAt(now))
	resetIn := time.Duration(0)
	if !allowed {
		resetIn = m.window / time.Duration(m.limit)
	}
	return Decision{Allowed: allowed, Limit: m.limit, Remaining: remaining, ResetIn: resetIn}, nil
}

// prune drops buckets idle for a full window; they would be full again.
func (m *MemoryLimiter) prune(now time.Time) {
	for key, bucket := range m.buckets {
		if now.Sub(bucket.lastSeen) >= m.window {
			delete(m.buckets, key)
		}
	}
}

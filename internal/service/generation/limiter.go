package generation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per task. Each bucket holds limit tokens
// and refills one token every window/limit.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[Task]*rate.Limiter
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window, buckets: make(map[Task]*rate.Limiter)}
}

// Allow takes a token for task. A non-positive limit disables limiting.
func (l *rateLimiter) Allow(task Task) bool {
	if l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	bucket, ok := l.buckets[task]
	if !ok {
		bucket = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
		l.buckets[task] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

package openai

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UserQuota caps analyses per user with an in-process token bucket.
// Buckets are created lazily and never evicted; the population is bounded
// by the active user count.
type UserQuota struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewUserQuota allows at most requests analyses per window per user.
func NewUserQuota(requests int, window time.Duration) *UserQuota {
	if requests <= 0 {
		requests = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &UserQuota{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
	}
}

func (q *UserQuota) Allow(userID string) bool {
	q.mu.Lock()
	limiter, ok := q.buckets[userID]
	if !ok {
		limiter = rate.NewLimiter(q.limit, q.burst)
		q.buckets[userID] = limiter
	}
	q.mu.Unlock()
	return limiter.Allow()
}

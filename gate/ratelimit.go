package gate

import (
	"strconv"
	"sync"
	"time"

	"plugin-pipeline/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Decision is the outcome of a rate limit check for one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter implements a fixed-window per-key (client IP) rate limit. All
// access to the bucket table serializes on one mutex, so concurrent requests
// from the same IP never undercount and the sweep never races an increment.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewLimiter creates a limiter with the given fixed window.
func NewLimiter(window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Allow counts one request for key against limit. Once the limit is reached
// the count stops incrementing; a new or expired window resets the count to 1.
func (l *Limiter) Allow(key string, limit int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}

		return Decision{Allowed: true, Limit: limit, Remaining: limit - 1}
	}

	if b.count >= limit {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: l.window,
		}
	}

	b.count++

	return Decision{Allowed: true, Limit: limit, Remaining: limit - b.count}
}

// sweep removes buckets whose window has expired and returns how many were
// removed. Only buckets observed expired under the lock are deleted.
func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, key)
			removed++
		}
	}

	return removed
}

// StartSweeper runs the periodic bucket sweep until Close is called, to bound
// the memory held by idle client entries.
func (l *Limiter) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if removed := l.sweep(); removed > 0 {
					log.Debug().
						Int("removed", removed).
						Msg("swept expired rate limit buckets")
				}
			case <-l.done:
				return
			}
		}
	}()
}

// Close stops the sweeper.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// RateLimit applies the limiter to every request on the route group,
// attaching X-RateLimit headers and answering 429 with Retry-After once the
// window is exhausted.
func RateLimit(l *Limiter, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := l.Allow(c.ClientIP(), limit)

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(429, gin.H{
				"code":    "RATE_LIMITED",
				"message": "Too many requests",
			})

			return
		}

		c.Next()
	}
}

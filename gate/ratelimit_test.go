package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLimiter returns a limiter with an adjustable clock.
func newTestLimiter(window time.Duration) (*Limiter, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(window)
	l.now = func() time.Time { return now }

	return l, &now
}

func TestLimiterFixedWindow(t *testing.T) {
	l, clock := newTestLimiter(60 * time.Second)
	const limit = 200

	t.Run("requests within the window count down", func(t *testing.T) {
		for i := 1; i <= limit; i++ {
			d := l.Allow("203.0.113.7", limit)
			require.True(t, d.Allowed, "request %d should pass", i)
			assert.Equal(t, limit-i, d.Remaining)
		}
	})

	t.Run("request over the limit is rejected without incrementing", func(t *testing.T) {
		for range 5 {
			d := l.Allow("203.0.113.7", limit)
			assert.False(t, d.Allowed)
			assert.Equal(t, 0, d.Remaining)
			assert.Equal(t, 60*time.Second, d.RetryAfter)
		}
	})

	t.Run("expired window resets the count to 1", func(t *testing.T) {
		*clock = clock.Add(61 * time.Second)

		d := l.Allow("203.0.113.7", limit)
		assert.True(t, d.Allowed)
		assert.Equal(t, limit-1, d.Remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		d := l.Allow("198.51.100.1", limit)
		assert.True(t, d.Allowed)
		assert.Equal(t, limit-1, d.Remaining)
	})
}

func TestLimiterSweep(t *testing.T) {
	l, clock := newTestLimiter(60 * time.Second)

	l.Allow("a", 10)
	l.Allow("b", 10)
	assert.Equal(t, 0, l.sweep(), "live buckets survive the sweep")

	*clock = clock.Add(2 * time.Minute)
	l.Allow("c", 10)

	assert.Equal(t, 2, l.sweep())
	assert.Len(t, l.buckets, 1)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l, _ := newTestLimiter(60 * time.Second)
	router := gin.New()
	router.GET("/ping", RateLimit(l, 2), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.7:54321"
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		return recorder
	}

	first := do()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	second := do()
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := do()
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "60", third.Header().Get("Retry-After"))
	assert.Equal(t, "0", third.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, third.Body.String(), "RATE_LIMITED")
}

func TestLimiterConcurrentIncrements(t *testing.T) {
	l, _ := newTestLimiter(60 * time.Second)
	const workers = 50
	const perWorker = 4

	done := make(chan struct{})
	for range workers {
		go func() {
			for range perWorker {
				l.Allow("shared", workers*perWorker+1)
			}
			done <- struct{}{}
		}()
	}
	for range workers {
		<-done
	}

	d := l.Allow("shared", workers*perWorker+1)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining, "every increment must be counted")
}

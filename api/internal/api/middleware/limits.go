package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MaxBytes caps request bodies. Oversized payloads fail while decoding.
func MaxBytes(n int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// RateLimiter is a per-IP token bucket. Idle visitors are evicted by a janitor goroutine.
type RateLimiter struct {
	visitors sync.Map
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

func NewRateLimiter(ctx context.Context, perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		idle:  3 * time.Minute,
	}
	go rl.cleanupVisitors(ctx, time.Minute)
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RealIP has already rewritten RemoteAddr when running behind a proxy.
		ip := r.RemoteAddr

		v, _ := rl.visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)})
		vis := v.(*visitor)

		vis.mu.Lock()
		vis.lastSeen = time.Now()
		vis.mu.Unlock()

		if !vis.limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"Rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanupVisitors(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle(time.Now())
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.visitors.Range(func(key, value any) bool {
		vis := value.(*visitor)
		vis.mu.Lock()
		idle := now.Sub(vis.lastSeen) > rl.idle
		vis.mu.Unlock()
		if idle {
			rl.visitors.Delete(key)
		}
		return true
	})
}

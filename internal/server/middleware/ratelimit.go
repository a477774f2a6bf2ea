package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// KeyFunc extracts the rate limit key from a request. An empty key skips
// limiting.
type KeyFunc func(r *http.Request) string

// ByIP keys on the remote address; use after chi's RealIP middleware.
func ByIP(r *http.Request) string {
	return r.RemoteAddr
}

// ByViewer keys on the viewer initials, falling back to the remote address.
func ByViewer(r *http.Request) string {
	if v, ok := ViewerFromContext(r.Context()); ok {
		return "viewer:" + v
	}
	return r.RemoteAddr
}

// RateLimit applies a token bucket per key. Stale entries are cleaned up
// every 10 minutes to prevent unbounded memory growth.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int, keyFn KeyFunc) func(http.Handler) http.Handler {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*keyedLimiter)
	)

	// Background cleanup of stale limiters.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				cutoff := time.Now().Add(-30 * time.Minute)
				for key, kl := range limiters {
					if kl.lastAccess.Before(cutoff) {
						delete(limiters, key)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		kl, ok := limiters[key]
		if !ok {
			kl = &keyedLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
			limiters[key] = kl
		}
		kl.lastAccess = time.Now()
		return kl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiterFor(key).Allow() {
				http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

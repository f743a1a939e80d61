package middleware

import (
	"net/http"
	"strconv"

	"productcatalog-api/pkg/apierror"

	"golang.org/x/time/rate"
)

// NewRateLimiter caps the request rate across all clients with one
// token bucket, shared by every handler the middleware wraps. A
// non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(retryAfterSeconds(rps))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, apierror.TooManyRequests(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(rps float64) int {
	if rps >= 1 {
		return 1
	}
	return int(1/rps + 0.5)
}

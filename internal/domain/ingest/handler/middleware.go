package handler

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond the configured steady rate. One global
// limiter is enough: the pipeline is serial per request anyway, and the
// limiter's job is to keep a misbehaving uploader from queueing hours of
// work.
func RateLimit(perSecond, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

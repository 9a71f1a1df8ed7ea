package httpadapter

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/plainlaw/internal/observability/metrics"
)

const backpressureWait = 250 * time.Millisecond

type rejectionContextKey struct{}

type rejection struct {
	reason string
}

func markRejected(r *http.Request, reason string) {
	if rej, ok := r.Context().Value(rejectionContextKey{}).(*rejection); ok {
		rej.reason = reason
	}
}

// rejectionCounter counts requests turned away by the traffic control layers below it.
func rejectionCounter(next http.Handler, httpMetrics *metrics.HTTPServerMetrics) http.Handler {
	if httpMetrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rej := &rejection{}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), rejectionContextKey{}, rej)))
		if rej.reason != "" {
			httpMetrics.RecordRejected(serviceName, rej.reason)
		}
	})
}

// rateLimitMiddleware applies one token bucket shared by all clients.
func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := limiter.Reserve()
		if !reservation.OK() {
			markRejected(r, "rate_limited")
			writeOverload(w, r, http.StatusTooManyRequests, time.Second, "rate limit exceeded")
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			markRejected(r, "rate_limited")
			writeOverload(w, r, http.StatusTooManyRequests, delay, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware admits at most maxInFlight concurrent requests and
// waits up to wait for a free slot before answering 503.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	slots := make(chan struct{}, maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
		case <-timer.C:
			markRejected(r, "overloaded")
			writeOverload(w, r, http.StatusServiceUnavailable, wait, "server is busy processing other documents")
			return
		case <-r.Context().Done():
			return
		}
		defer func() { <-slots }()

		next.ServeHTTP(w, r)
	})
}

func writeOverload(w http.ResponseWriter, r *http.Request, status int, retryAfter time.Duration, msg string) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, status, map[string]string{
		"error":     msg,
		"requestId": requestIDFromContext(r.Context()),
	})
}

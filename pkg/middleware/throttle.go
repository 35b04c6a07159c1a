package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/idsync/pkg/observability"
)

// Throttle rejects requests to the given paths once the client's budget is
// spent. Requests to other paths pass through untouched; with no paths every
// request is limited. Limiter errors are logged and the request is served.
func Throttle(limiter Limiter, window time.Duration, logger *observability.Logger, metrics *observability.Metrics, paths ...string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	limited := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		limited[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limited) > 0 {
				if _, ok := limited[r.URL.Path]; !ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			ip := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), "ip:"+ip)
			if err != nil {
				logger.WithError(err).WithField("client_ip", ip).Warn("Rate limiter unavailable, allowing request")
			}
			if !allowed {
				if metrics != nil {
					metrics.LoginThrottledTotal.Inc()
				}
				logger.WithFields(map[string]interface{}{
					"client_ip": ip,
					"path":      r.URL.Path,
				}).Warn("Rate limit exceeded")
				rateLimitExceeded(w, limiter, window)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitExceeded(w http.ResponseWriter, limiter Limiter, window time.Duration) {
	retryAfter := window.Seconds()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded","retry_after":` + fmt.Sprintf("%.0f", retryAfter) + `}`))
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

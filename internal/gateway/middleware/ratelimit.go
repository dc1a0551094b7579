package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Limiter is satisfied by *ratelimit.Limiter.
type Limiter interface {
	Allow(key string, limit int) bool
	RetryAfter(limit int) time.Duration
}

// RateLimit enforces per-caller limits. Members are limited by their key's
// rate_limit and guests by guestLimit per client address.
func RateLimit(limiter Limiter, guestLimit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			key, limit := "guest:"+clientIP(r), guestLimit
			if info := GetKeyInfo(r.Context()); info != nil {
				key, limit = "member:"+info.ID, info.RateLimit
			}
			if !limiter.Allow(key, limit) {
				retry := max(1, int(limiter.RetryAfter(limit).Round(time.Second)/time.Second))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the connection's
// remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

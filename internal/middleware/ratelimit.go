package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type bucket struct {
	count int
	until time.Time
}

// RateLimit allows limit requests per client IP in each window of length per.
// A non-positive limit disables the check. Idle buckets expire with the window.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if per <= 0 {
		per = time.Minute
	}
	var mu sync.Mutex
	buckets := cache.New(per, 2*per)
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			now := time.Now()
			mu.Lock()
			var b *bucket
			if v, ok := buckets.Get(ip); ok {
				b = v.(*bucket)
			}
			if b == nil || now.After(b.until) {
				b = &bucket{until: now.Add(per)}
				buckets.Set(ip, b, per)
			}
			if b.count >= limit {
				retry := b.until.Sub(now)
				mu.Unlock()
				tooManyRequests(w, retry)
				return
			}
			b.count++
			mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "rate_limited",
			"message": "Too many requests, slow down.",
		},
	})
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// only honoured when a trusted proxy middleware has already rewritten
// RemoteAddr from them.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

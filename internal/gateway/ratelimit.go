/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table; the least recently seen
// client is forgotten first.
const maxTrackedClients = 10000

// RateLimiter is a per-client token bucket refilling at maxPerMinute per
// minute with a burst of maxPerMinute.
type RateLimiter struct {
	mu        sync.Mutex
	clients   *lru.Cache[string, *rate.Limiter]
	maxPerMin int
}

// NewRateLimiter returns a limiter allowing maxPerMinute requests per client.
// A non-positive limit disables limiting.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	clients, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &RateLimiter{clients: clients, maxPerMin: maxPerMinute}
}

// Allow takes one token from key's bucket and reports whether one was left.
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil || rl.maxPerMin <= 0 {
		return true
	}

	rl.mu.Lock()
	lim, ok := rl.clients.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.maxPerMin)), rl.maxPerMin)
		rl.clients.Add(key, lim)
	}
	rl.mu.Unlock()

	return lim.Allow()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientKey(r)) {
			rateLimitedTotal.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit_error", "rate_limit_exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey names the caller for rate limiting and audit logs: a
// fingerprint of the bearer token when one is sent, otherwise the remote
// host. The router's RealIP middleware has
// already folded X-Forwarded-For and X-Real-IP into RemoteAddr.
func ClientKey(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		sum := sha256.Sum256([]byte(token))
		return "token:" + hex.EncodeToString(sum[:8])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

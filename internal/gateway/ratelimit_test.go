/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiterBuckets(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		calls   int
		allowed int
	}{
		{"under limit", 5, 5, 5},
		{"over limit", 3, 5, 3},
		{"disabled", 0, 100, 100},
		{"negative disables", -1, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.limit)
			got := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("planner") {
					got++
				}
			}
			if got != tt.allowed {
				t.Errorf("allowed %d of %d, want %d", got, tt.calls, tt.allowed)
			}
		})
	}
}

func TestRateLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter(2)
	rl.Allow("qa")
	rl.Allow("qa")
	if rl.Allow("qa") {
		t.Error("qa should be throttled")
	}
	if !rl.Allow("dev") {
		t.Error("dev has its own bucket")
	}
}

func TestRateLimiterNilAllows(t *testing.T) {
	var rl *RateLimiter
	if !rl.Allow("anyone") {
		t.Error("nil limiter should allow")
	}
}

func TestRateLimiterForgetsOldestClient(t *testing.T) {
	rl := NewRateLimiter(1)
	rl.Allow("first")
	for i := 0; i < maxTrackedClients; i++ {
		rl.Allow(fmt.Sprintf("client-%d", i))
	}
	if !rl.Allow("first") {
		t.Error("evicted client should start with a full bucket")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(600) // a token every 100ms
	for i := 0; i < 600; i++ {
		rl.Allow("planner")
	}
	if rl.Allow("planner") {
		t.Fatal("bucket should be empty")
	}
	time.Sleep(150 * time.Millisecond)
	if !rl.Allow("planner") {
		t.Error("bucket should have refilled one token")
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name   string
		auth   string
		remote string
		want   string
	}{
		{"remote host without port", "", "10.0.0.7:51234", "ip:10.0.0.7"},
		{"bare remote", "", "10.0.0.7", "ip:10.0.0.7"},
		{"empty bearer falls back", "Bearer ", "10.0.0.7:1", "ip:10.0.0.7"},
		{"basic auth ignored", "Basic Zm9vOmJhcg==", "[::1]:8080", "ip:::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
			r.RemoteAddr = tt.remote
			if tt.auth != "" {
				r.Header.Set("Authorization", tt.auth)
			}
			if got := ClientKey(r); got != tt.want {
				t.Errorf("ClientKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientKeyHidesToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
	r.Header.Set("Authorization", "Bearer sk-agent-secret")
	key := ClientKey(r)
	if !strings.HasPrefix(key, "token:") || strings.Contains(key, "sk-agent-secret") {
		t.Errorf("ClientKey = %q, want an opaque token fingerprint", key)
	}
	other := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
	other.Header.Set("Authorization", "Bearer sk-other")
	if ClientKey(other) == key {
		t.Error("different tokens must map to different keys")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
		req.Header.Set("Authorization", "Bearer agent-key")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, want)
		}
	}
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const okBody = `{"id":"c1","model":"openai/gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"done"}}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`

// scripted answers each request with the next status in the script; after
// the script runs out it answers 200 with okBody.
func scripted(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":{"message":"upstream said no","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(okBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// recordingClient returns a client whose Sleep records waits instead of sleeping.
func recordingClient(url string) (*Client, *[]time.Duration) {
	var slept []time.Duration
	c := New(url, "sk-test")
	c.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestInvokeSuccess(t *testing.T) {
	var got ChatCompletionRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c, slept := recordingClient(srv.URL + "/api/v1")
	c.Referer = "https://example.test"
	c.Title = "conclave"
	res, err := c.Invoke(context.Background(), "openai/gpt-4o", []Message{System("be brief"), User("hi")})
	if err != nil {
		t.Fatalf("Invoke() = %v", err)
	}
	if res.Text != "done" || res.Attempts != 1 || res.Usage.TotalTokens != 12 {
		t.Errorf("result = %+v", res)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v on success", *slept)
	}
	if got.Temperature != DefaultTemperature || got.MaxTokens != DefaultMaxTokens || got.Stream {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if headers.Get("Authorization") != "Bearer sk-test" || headers.Get("HTTP-Referer") != "https://example.test" || headers.Get("X-Title") != "conclave" {
		t.Errorf("headers = %v", headers)
	}
}

func TestInvokeSendsStreamFalseExplicitly(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c, _ := recordingClient(srv.URL)
	if _, err := c.Invoke(context.Background(), "m", []Message{User("x")}, WithTemperature(0), WithMaxTokens(10)); err != nil {
		t.Fatal(err)
	}
	if raw["stream"] != false || raw["temperature"] != 0.0 || raw["max_tokens"] != 10.0 {
		t.Errorf("body = %v", raw)
	}
}

func TestInvokeRetriesThenSucceeds(t *testing.T) {
	srv, calls := scripted(t, http.StatusTooManyRequests, http.StatusBadGateway)
	c, slept := recordingClient(srv.URL)

	res, err := c.Invoke(context.Background(), "m", []Message{User("x")})
	if err != nil {
		t.Fatalf("Invoke() = %v", err)
	}
	if res.Attempts != 3 || calls.Load() != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3", res.Attempts, calls.Load())
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("slept = %v, want %v", *slept, want)
	}
}

func TestInvokeRetryBound(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503} {
		srv, calls := scripted(t, status, status, status, status, status)
		c, slept := recordingClient(srv.URL)

		_, err := c.Invoke(context.Background(), "m", []Message{User("x")})
		var re *RetryError
		if !errors.As(err, &re) {
			t.Fatalf("status %d: err = %v, want *RetryError", status, err)
		}
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Errorf("status %d: errors.Is(ErrRetriesExhausted) = false", status)
		}
		if re.Attempts != DefaultMaxRetries || calls.Load() != int32(DefaultMaxRetries) {
			t.Errorf("status %d: attempts = %d, calls = %d", status, re.Attempts, calls.Load())
		}
		var se *StatusError
		if !errors.As(err, &se) || se.Code != status || se.Message != "upstream said no" {
			t.Errorf("status %d: cause = %v", status, re.Err)
		}
		// Never sleeps after the final attempt.
		if len(*slept) != DefaultMaxRetries-1 {
			t.Errorf("status %d: slept %d times", status, len(*slept))
		}
	}
}

func TestInvokeCustomRetryBudget(t *testing.T) {
	srv, calls := scripted(t, 503, 503, 503, 503, 503, 503)
	c, slept := recordingClient(srv.URL)

	_, err := c.Invoke(context.Background(), "m", []Message{User("x")}, WithMaxRetries(5))
	var re *RetryError
	if !errors.As(err, &re) || re.Attempts != 5 || calls.Load() != 5 {
		t.Fatalf("err = %v, calls = %d", err, calls.Load())
	}
	for i, d := range *slept {
		if want := time.Duration(1<<(i+1)) * time.Second; d != want {
			t.Errorf("sleep %d = %v, want %v", i, d, want)
		}
	}
}

func TestInvokeNonRetryableFailsFast(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		srv, calls := scripted(t, status)
		c, slept := recordingClient(srv.URL)

		_, err := c.Invoke(context.Background(), "m", []Message{User("x")})
		var se *StatusError
		if !errors.As(err, &se) || se.Code != status {
			t.Errorf("status %d: err = %v", status, err)
		}
		if errors.Is(err, ErrRetriesExhausted) {
			t.Errorf("status %d: should not be a retry exhaustion", status)
		}
		if calls.Load() != 1 || len(*slept) != 0 {
			t.Errorf("status %d: calls = %d, slept = %v", status, calls.Load(), *slept)
		}
	}
}

func TestInvokeNoChoices(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	c, _ := recordingClient(srv.URL)
	res, err := c.Invoke(context.Background(), "m", []Message{User("x")})
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("err = %v, want ErrNoChoices", err)
	}
	if calls.Load() != 1 || res.Attempts != 1 {
		t.Errorf("calls = %d, attempts = %d", calls.Load(), res.Attempts)
	}
}

func TestInvokeTransportErrorIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from now on

	c, slept := recordingClient(url)
	_, err := c.Invoke(context.Background(), "m", []Message{User("x")}, WithMaxRetries(2))
	var re *RetryError
	if !errors.As(err, &re) || re.Attempts != 2 {
		t.Fatalf("err = %v, want RetryError after 2 attempts", err)
	}
	if len(*slept) != 1 {
		t.Errorf("slept = %v", *slept)
	}
}

func TestInvokeCancelDuringBackoff(t *testing.T) {
	srv, calls := scripted(t, 503, 503, 503)
	c := New(srv.URL, "k")
	c.Backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := c.Invoke(ctx, "m", []Message{User("x")})
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Invoke did not return after cancel")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestComplete(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c, _ := recordingClient(srv.URL)
	text, err := c.Complete(context.Background(), "m", "write tests", "")
	if err != nil || text != "done" {
		t.Fatalf("Complete() = %q, %v", text, err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{9, 5 * time.Minute},
		{40, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{Code: 429}, true},
		{"500", &StatusError{Code: 500}, true},
		{"502", &StatusError{Code: 502}, true},
		{"503", &StatusError{Code: 503}, true},
		{"504", &StatusError{Code: 504}, false},
		{"400", &StatusError{Code: 400}, false},
		{"transport", &transportError{err: errors.New("connection reset")}, true},
		{"canceled transport", &transportError{err: context.Canceled}, false},
		{"no choices", ErrNoChoices, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

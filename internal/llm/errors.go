/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoChoices is returned when a 2xx response carries no choices.
	// It is never retried.
	ErrNoChoices = errors.New("chat completion returned no choices")

	// ErrRetriesExhausted matches every *RetryError via errors.Is.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// StatusError is a non-2xx answer from the upstream API.
type StatusError struct {
	Code    int
	Status  string
	Message string // upstream error.message when the body parsed
	Body    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat completion failed: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("chat completion failed: %s %s", e.Status, e.Body)
}

// RetryError is the terminal error after every attempt failed with a
// retryable error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("chat completion failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error { return []error{ErrRetriesExhausted, e.Err} }

// IsRetryable reports whether err is worth another attempt: HTTP 429, 500,
// 502 or 503, or a transport failure that produced no response at all.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable:
			return true
		}
		return false
	}
	var te *transportError
	return errors.As(err, &te)
}

// transportError marks a failure before any HTTP response was received.
type transportError struct{ err error }

func (e *transportError) Error() string { return "chat completion transport error: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

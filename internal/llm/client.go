/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hortator-ai/conclave/internal/telemetry"
)

// Defaults applied by Invoke when no CallOption overrides them.
const (
	DefaultMaxRetries  = 3
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000

	maxResponseBytes = 10 << 20
)

var tracer = telemetry.Tracer("llm")

// Client sends chat-completion requests. It keeps no state between
// invocations apart from metrics, so one Client can serve many goroutines.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	// Referer and Title are sent as HTTP-Referer and X-Title, which
	// OpenRouter uses for attribution. Empty values are omitted.
	Referer string
	Title   string

	Log logr.Logger

	// Backoff returns the wait before the retry that follows a failed attempt.
	Backoff func(attempt int) time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Client for an OpenAI-compatible base URL such as
// https://openrouter.ai/api/v1.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
		Log:        logr.Discard(),
		Backoff:    Backoff,
		Sleep:      sleepContext,
	}
}

// Backoff waits 2^attempt seconds, capped at five minutes.
func Backoff(attempt int) time.Duration {
	const max = 5 * time.Minute
	if attempt < 1 {
		attempt = 1
	}
	if attempt >= 9 {
		return max
	}
	return time.Duration(1<<attempt) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type callOptions struct {
	maxRetries  int
	temperature float64
	maxTokens   int
}

// CallOption overrides a per-call default.
type CallOption func(*callOptions)

// WithMaxRetries sets the total number of attempts. Values below 1 mean 1.
func WithMaxRetries(n int) CallOption { return func(o *callOptions) { o.maxRetries = n } }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption { return func(o *callOptions) { o.temperature = t } }

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) CallOption { return func(o *callOptions) { o.maxTokens = n } }

// Result is a successful completion.
type Result struct {
	Text     string
	Model    string
	Usage    *Usage
	Attempts int
}

// Invoke sends messages to model and returns the first choice's content.
//
// Rate-limit and server errors (429, 500, 502, 503) and transport failures
// are retried after Backoff(attempt) until the attempt budget is spent, at
// which point a *RetryError is returned. Any other error is returned
// immediately. Cancelling ctx aborts both the request and the backoff wait.
func (c *Client) Invoke(ctx context.Context, model string, messages []Message, opts ...CallOption) (Result, error) {
	o := callOptions{maxRetries: DefaultMaxRetries, temperature: DefaultTemperature, maxTokens: DefaultMaxTokens}
	for _, fn := range opts {
		fn(&o)
	}
	if o.maxRetries < 1 {
		o.maxRetries = 1
	}
	req := ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Stream:      false,
	}

	ctx, span := tracer.Start(ctx, "llm.Invoke", trace.WithAttributes(
		attribute.String("conclave.llm.model", model),
		attribute.Int("conclave.llm.max_retries", o.maxRetries),
	))
	start := time.Now()
	log := c.Log.WithValues("model", model)

	var (
		res Result
		err error
	)
	for attempt := 1; ; attempt++ {
		res, err = c.send(ctx, req)
		res.Attempts = attempt
		if err == nil {
			break
		}
		if !IsRetryable(err) {
			break
		}
		if attempt >= o.maxRetries {
			err = &RetryError{Attempts: attempt, Err: err}
			break
		}
		delay := c.backoff(attempt)
		llmRetriesTotal.WithLabelValues(model).Inc()
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("conclave.llm.attempt", attempt),
			attribute.String("conclave.llm.error", err.Error()),
		))
		log.Info("Retrying chat completion", "attempt", attempt, "maxRetries", o.maxRetries, "backoff", delay.String(), "error", err.Error())
		if serr := c.sleep(ctx, delay); serr != nil {
			err = serr
			break
		}
	}

	result := "ok"
	if err != nil {
		result = "error"
		log.Error(err, "Chat completion failed", "attempts", res.Attempts)
	} else {
		log.V(1).Info("Chat completion succeeded", "attempts", res.Attempts)
		if res.Usage != nil {
			llmTokensTotal.WithLabelValues(model, "prompt").Add(float64(res.Usage.PromptTokens))
			llmTokensTotal.WithLabelValues(model, "completion").Add(float64(res.Usage.CompletionTokens))
		}
	}
	llmRequestsTotal.WithLabelValues(model, result).Inc()
	llmDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("conclave.llm.attempts", res.Attempts))
	telemetry.EndSpan(span, err)
	return res, err
}

// Complete is Invoke with an optional system prompt and one user message.
func (c *Client) Complete(ctx context.Context, model, prompt, system string, opts ...CallOption) (string, error) {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, System(system))
	}
	msgs = append(msgs, User(prompt))
	res, err := c.Invoke(ctx, model, msgs, opts...)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	if c.Backoff != nil {
		return c.Backoff(attempt)
	}
	return Backoff(attempt)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// send performs one attempt.
func (c *Client) send(ctx context.Context, body ChatCompletionRequest) (Result, error) {
	llmAttemptsTotal.WithLabelValues(body.Model).Inc()
	data, err := json.Marshal(body)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if c.Referer != "" {
		req.Header.Set("HTTP-Referer", c.Referer)
	}
	if c.Title != "" {
		req.Header.Set("X-Title", c.Title)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Result{}, &transportError{err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(raw)}
		var er ErrorResponse
		if json.Unmarshal(raw, &er) == nil {
			se.Message = er.Error.Message
		}
		return Result{}, se
	}

	var out ChatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message == nil {
		return Result{}, ErrNoChoices
	}
	return Result{Text: out.Choices[0].Message.Content, Model: out.Model, Usage: out.Usage}, nil
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package coordinator

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hortator-ai/conclave/internal/llm"
)

// AskRequest is one model call made on behalf of an agent.
type AskRequest struct {
	Agent  string
	Prompt string
	// System is an optional system prompt.
	System string
	// Model overrides the configured default.
	Model string
	// MaxRetries overrides the configured retry budget when positive.
	MaxRetries int
}

// Ask sends the prompt to the model and returns the completion text.
func (c *Coordinator) Ask(ctx context.Context, req AskRequest) (text string, err error) {
	model := req.Model
	if model == "" {
		model = c.DefaultModel
	}
	ctx, done := c.observe(ctx, "ask",
		attribute.String("conclave.agent", req.Agent), attribute.String("conclave.model", model))
	defer func() { done(&err) }()

	if c.LLM == nil {
		return "", ErrUnsupported
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalid)
	}
	var msgs []llm.Message
	if req.System != "" {
		msgs = append(msgs, llm.System(req.System))
	}
	msgs = append(msgs, llm.User(req.Prompt))

	opts := append([]llm.CallOption{}, c.CallOptions...)
	if req.MaxRetries > 0 {
		opts = append(opts, llm.WithMaxRetries(req.MaxRetries))
	}
	res, err := c.LLM.Invoke(ctx, model, msgs, opts...)
	details := map[string]any{"model": model, "attempts": res.Attempts}
	if res.Usage != nil {
		details["totalTokens"] = res.Usage.TotalTokens
		if cost, ok := c.Prices.Cost(model, res.Usage); ok {
			details["costUsd"] = cost
		}
	}
	c.record(ctx, req.Agent, "llm.ask", err, details)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

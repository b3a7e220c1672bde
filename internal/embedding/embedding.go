/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when an upstream model answers with a
// vector whose length differs from the configured dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Provider embeds text. Implementations are safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension is the length of every vector returned by Embed.
	Dimension() int
	// Model names the embedding model, used as part of cache keys.
	Model() string
}

// New builds a provider by name. "openai" talks to an OpenAI-compatible
// /embeddings endpoint; "hashing" embeds locally.
func New(provider, baseURL, apiKey, model string, dim int) (Provider, error) {
	switch provider {
	case "openai", "openrouter":
		return NewOpenAI(baseURL, apiKey, model, dim), nil
	case "hashing", "":
		return NewHashing(dim), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-ada-002"

// OpenAI calls an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	BaseURL    string
	APIKey     string
	ModelName  string
	Dim        int
	HTTPClient *http.Client
}

// NewOpenAI returns an OpenAI embeddings client. A zero dim disables the
// length check on responses.
func NewOpenAI(baseURL, apiKey, model string, dim int) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		ModelName:  model,
		Dim:        dim,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (o *OpenAI) Dimension() int { return o.Dim }
func (o *OpenAI) Model() string  { return o.ModelName }

// Embed sends one text and returns its vector. Upstream errors are returned
// as-is; there is no retry or fallback at this layer.
func (o *OpenAI) Embed(ctx context.Context, text string) (vec []float32, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		embedRequestsTotal.WithLabelValues(result).Inc()
	}()

	data, err := json.Marshal(embeddingRequest{Model: o.ModelName, Input: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embeddings request failed: %s %s", resp.Status, string(b))
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embeddings response contained no data")
	}
	vec = out.Data[0].Embedding
	if o.Dim > 0 && len(vec) != o.Dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), o.Dim)
	}
	return vec, nil
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// LiteLLMPriceMapURL is the public LiteLLM model price list.
const LiteLLMPriceMapURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// ModelPricing holds per-token prices for a model in USD.
type ModelPricing struct {
	InputCostPerToken  float64 `json:"input_cost_per_token"`
	OutputCostPerToken float64 `json:"output_cost_per_token"`
}

// PriceMap is a concurrency-safe table of model prices in the LiteLLM
// price list format.
type PriceMap struct {
	// Source is an http(s) URL or a local file path.
	Source     string
	HTTPClient *http.Client
	// MaxAge is how long a loaded table stays fresh. Zero means 24h.
	MaxAge time.Duration

	mu       sync.RWMutex
	prices   map[string]ModelPricing
	loadedAt time.Time
}

// NewPriceMap returns an empty price map reading from source.
func NewPriceMap(source string) *PriceMap {
	return &PriceMap{Source: source, prices: map[string]ModelPricing{}}
}

// Refresh reloads the table when it is empty or older than MaxAge. On
// failure the previous table is kept.
func (pm *PriceMap) Refresh(ctx context.Context) error {
	maxAge := pm.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	pm.mu.RLock()
	fresh := len(pm.prices) > 0 && time.Since(pm.loadedAt) < maxAge
	pm.mu.RUnlock()
	if fresh {
		return nil
	}

	body, err := pm.read(ctx)
	if err != nil {
		return err
	}
	prices, err := ParsePriceMap(body)
	if err != nil {
		return err
	}
	pm.Set(prices)
	return nil
}

func (pm *PriceMap) read(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(pm.Source, "http://") && !strings.HasPrefix(pm.Source, "https://") {
		return os.ReadFile(pm.Source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pm.Source, nil)
	if err != nil {
		return nil, err
	}
	client := pm.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch price map: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch price map: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// ParsePriceMap decodes a LiteLLM price list. Entries without any token
// price are skipped.
func ParsePriceMap(data []byte) (map[string]ModelPricing, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse price map: %w", err)
	}
	prices := make(map[string]ModelPricing, len(raw))
	for model, entry := range raw {
		var p struct {
			In  *float64 `json:"input_cost_per_token"`
			Out *float64 `json:"output_cost_per_token"`
		}
		if json.Unmarshal(entry, &p) != nil || (p.In == nil && p.Out == nil) {
			continue
		}
		var mp ModelPricing
		if p.In != nil {
			mp.InputCostPerToken = *p.In
		}
		if p.Out != nil {
			mp.OutputCostPerToken = *p.Out
		}
		prices[model] = mp
	}
	return prices, nil
}

// Set replaces the table.
func (pm *PriceMap) Set(prices map[string]ModelPricing) {
	pm.mu.Lock()
	pm.prices = prices
	pm.loadedAt = time.Now()
	pm.mu.Unlock()
}

// Pricing looks model up by exact name, then without an OpenRouter-style
// provider prefix, then with the LiteLLM provider prefixes.
func (pm *PriceMap) Pricing(model string) (ModelPricing, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if p, ok := pm.prices[model]; ok {
		return p, true
	}
	if _, bare, found := strings.Cut(model, "/"); found {
		if p, ok := pm.prices[bare]; ok {
			return p, true
		}
		model = bare
	}
	for _, prefix := range []string{"openai/", "anthropic/", "google/", "azure/", "bedrock/", "vertex_ai/", "groq/", "together_ai/"} {
		if p, ok := pm.prices[prefix+model]; ok {
			return p, true
		}
	}
	return ModelPricing{}, false
}

// Cost returns the USD cost of usage on model. ok is false when the model
// is unknown or usage is nil.
func (pm *PriceMap) Cost(model string, usage *Usage) (cost float64, ok bool) {
	if pm == nil || usage == nil {
		return 0, false
	}
	p, ok := pm.Pricing(model)
	if !ok {
		return 0, false
	}
	cost = float64(usage.PromptTokens)*p.InputCostPerToken + float64(usage.CompletionTokens)*p.OutputCostPerToken
	llmCostTotal.WithLabelValues(model).Add(cost)
	return cost, true
}

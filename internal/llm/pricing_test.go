/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package llm

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

const priceList = `{
  "sample_spec": {"max_tokens": "set to max"},
  "gpt-4o-mini": {"input_cost_per_token": 0.00000015, "output_cost_per_token": 0.0000006},
  "anthropic/claude-sonnet-4": {"input_cost_per_token": 0.000003, "output_cost_per_token": 0.000015},
  "embed-only": {"input_cost_per_token": 0.0000001}
}`

func TestParsePriceMapSkipsNonModels(t *testing.T) {
	prices, err := ParsePriceMap([]byte(priceList))
	if err != nil {
		t.Fatalf("ParsePriceMap: %v", err)
	}
	if _, ok := prices["sample_spec"]; ok {
		t.Error("sample_spec has no prices and should be skipped")
	}
	if got := prices["embed-only"]; got.InputCostPerToken == 0 || got.OutputCostPerToken != 0 {
		t.Errorf("embed-only = %+v", got)
	}
	if len(prices) != 3 {
		t.Errorf("len = %d, want 3", len(prices))
	}
}

func TestPricingLookup(t *testing.T) {
	prices, _ := ParsePriceMap([]byte(priceList))
	pm := NewPriceMap("")
	pm.Set(prices)

	for _, model := range []string{"gpt-4o-mini", "openai/gpt-4o-mini", "claude-sonnet-4", "anthropic/claude-sonnet-4"} {
		if _, ok := pm.Pricing(model); !ok {
			t.Errorf("Pricing(%q) not found", model)
		}
	}
	if _, ok := pm.Pricing("mystery-model"); ok {
		t.Error("unknown model should not resolve")
	}
}

func TestCost(t *testing.T) {
	prices, _ := ParsePriceMap([]byte(priceList))
	pm := NewPriceMap("")
	pm.Set(prices)

	cost, ok := pm.Cost("openai/gpt-4o-mini", &Usage{PromptTokens: 1000, CompletionTokens: 500})
	if !ok {
		t.Fatal("expected a price")
	}
	if want := 0.00045; math.Abs(cost-want) > 1e-12 {
		t.Errorf("cost = %v, want %v", cost, want)
	}
	if _, ok := pm.Cost("gpt-4o-mini", nil); ok {
		t.Error("nil usage has no cost")
	}
	var none *PriceMap
	if _, ok := none.Cost("gpt-4o-mini", &Usage{PromptTokens: 1}); ok {
		t.Error("nil price map has no cost")
	}
}

func TestRefreshFromURLIsCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(priceList))
	}))
	defer srv.Close()

	pm := NewPriceMap(srv.URL)
	ctx := context.Background()
	if err := pm.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := pm.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("fetched %d times, want 1", calls.Load())
	}
	if _, ok := pm.Pricing("gpt-4o-mini"); !ok {
		t.Error("price missing after refresh")
	}
}

func TestRefreshFailureKeepsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	pm := NewPriceMap(srv.URL)
	if err := pm.Refresh(context.Background()); err == nil {
		t.Fatal("expected an error for a 502")
	}
	if _, ok := pm.Pricing("gpt-4o-mini"); ok {
		t.Error("table should still be empty")
	}
}

func TestRefreshFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.json")
	if err := os.WriteFile(path, []byte(priceList), 0o600); err != nil {
		t.Fatal(err)
	}
	pm := NewPriceMap(path)
	if err := pm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := pm.Pricing("claude-sonnet-4"); !ok {
		t.Error("price missing after file load")
	}
}

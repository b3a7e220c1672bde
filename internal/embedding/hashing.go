/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing is a deterministic local embedder. Each lowercase word and each
// pair of adjacent words is hashed into one of Dim buckets with a signed
// weight, and the result is L2-normalised. Texts that share words land close
// together, which is enough for offline runs and tests.
type Hashing struct {
	Dim int
}

// NewHashing returns a hashing embedder. dim <= 0 selects 256.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = 256
	}
	return &Hashing{Dim: dim}
}

func (h *Hashing) Dimension() int { return h.Dim }
func (h *Hashing) Model() string  { return "hashing" }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (h *Hashing) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := sum % uint64(len(vec))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// Embed never fails; it honours the interface so it can stand in for a
// remote provider.
func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

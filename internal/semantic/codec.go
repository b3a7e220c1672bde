/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package semantic

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hortator-ai/conclave/internal/vectorstore"
)

// Vector metadata must be flat, so lists, maps and payloads travel as JSON
// strings and timestamps as RFC 3339.

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(md vectorstore.Metadata, key string) ([]string, error) {
	raw := md.String(key)
	if raw == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func decodeMap(md vectorstore.Metadata, key string) (map[string]any, error) {
	raw := md.String(key)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func decodeAny(md vectorstore.Metadata, key string) (any, error) {
	raw := md.String(key)
	if raw == "" {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(md vectorstore.Metadata, key string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, md.String(key))
	return t
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package ledger stores tasks, communications and project state in a SQL
// database with exact lookups. It offers the same operations as the
// semantic package, plus compare-and-swap variants that report conflicts
// instead of silently losing writes.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no row has the requested id.
	ErrNotFound = errors.New("ledger record not found")

	// ErrConflict is returned when a conditional write finds a different
	// current value than the caller expected, or an id is already taken.
	ErrConflict = errors.New("ledger write conflict")
)

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// nullableJSON encodes v, or returns SQL NULL for nil.
func nullableJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return nil, nil
	}
	s, err := encodeJSON(v)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func decodeStrings(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func decodeNullMap(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeNullAny(raw sql.NullString) (any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

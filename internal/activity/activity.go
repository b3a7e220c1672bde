// Package activity records an append-only, timestamped trail of what each
// agent did through the coordination layer.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Levels used by the coordinator.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Entry is one activity record.
type Entry struct {
	ID      string         `json:"id"`
	At      time.Time      `json:"at"`
	Agent   string         `json:"agent"`
	Action  string         `json:"action"`
	Level   string         `json:"level"`
	Details map[string]any `json:"details,omitempty"`
}

// Logger appends entries.
type Logger interface {
	Log(ctx context.Context, e Entry) error
}

type discard struct{}

func (discard) Log(context.Context, Entry) error { return nil }

// Discard drops every entry.
var Discard Logger = discard{}

// SQL writes entries to the activity_log table.
type SQL struct {
	DB    *sql.DB
	Now   func() time.Time
	NewID func() string
}

// Log appends e. Missing ID, At and Level are filled in.
func (w SQL) Log(ctx context.Context, e Entry) error {
	if e.ID == "" {
		if w.NewID != nil {
			e.ID = w.NewID()
		} else {
			e.ID = uuid.NewString()
		}
	}
	if e.At.IsZero() {
		if w.Now != nil {
			e.At = w.Now()
		} else {
			e.At = time.Now()
		}
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	var details any
	if len(e.Details) > 0 {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal activity details: %w", err)
		}
		details = string(data)
	}
	_, err := w.DB.ExecContext(ctx,
		`INSERT INTO activity_log(id, at, agent, action, level, details_json) VALUES (?,?,?,?,?,?)`,
		e.ID, e.At.UTC().UnixNano(), e.Agent, e.Action, e.Level, details)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty agent returns
// entries for every agent.
func (w SQL) Recent(ctx context.Context, agent string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, at, agent, action, level, details_json FROM activity_log`
	args := []any{}
	if agent != "" {
		query += ` WHERE agent=?`
		args = append(args, agent)
	}
	query += ` ORDER BY at DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := w.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			at      int64
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Agent, &e.Action, &e.Level, &details); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, at).UTC()
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("activity %s details: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hortator-ai/conclave/api/v1alpha1"
)

// Tasks is the SQL task store.
type Tasks struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s Tasks) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

const taskColumns = `id, agent, description, status, result, dependencies_json, metadata_json, created_at, updated_at`

// Save inserts a new task and returns its id. An id already in use (same
// agent within one millisecond) is reported as ErrConflict.
func (s Tasks) Save(ctx context.Context, agent, description string, status v1alpha1.TaskStatus, deps []string, metadata map[string]any) (string, error) {
	if !status.Valid() {
		return "", fmt.Errorf("invalid task status %q", status)
	}
	if deps == nil {
		deps = []string{}
	}
	depsJSON, err := encodeJSON(deps)
	if err != nil {
		return "", fmt.Errorf("encode dependencies: %w", err)
	}
	metaJSON, err := nullableJSON(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	now := s.now()
	id := v1alpha1.NewTaskID(agent, now)
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		id, agent, description, string(status), "", depsJSON, metaJSON, nanos(now), nanos(now))
	if err != nil {
		if _, getErr := s.Get(ctx, id); getErr == nil {
			return "", fmt.Errorf("task %s: %w: id already exists", id, ErrConflict)
		}
		return "", fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func scanTask(row rowScanner) (v1alpha1.Task, error) {
	var (
		t                  v1alpha1.Task
		status, depsJSON   string
		metaJSON           sql.NullString
		createdAt, updated int64
	)
	if err := row.Scan(&t.ID, &t.Agent, &t.Description, &status, &t.Result, &depsJSON, &metaJSON, &createdAt, &updated); err != nil {
		return t, err
	}
	t.Status = v1alpha1.TaskStatus(status)
	t.CreatedAt = fromNanos(createdAt)
	t.UpdatedAt = fromNanos(updated)
	var err error
	if t.Dependencies, err = decodeStrings(depsJSON); err != nil {
		return t, fmt.Errorf("task %s dependencies: %w", t.ID, err)
	}
	if t.Metadata, err = decodeNullMap(metaJSON); err != nil {
		return t, fmt.Errorf("task %s metadata: %w", t.ID, err)
	}
	return t, nil
}

// Get returns one task by id.
func (s Tasks) Get(ctx context.Context, id string) (v1alpha1.Task, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, notFound("task", id)
	}
	return t, err
}

// ListByAgent returns the agent's tasks oldest first, optionally narrowed to
// one status.
func (s Tasks) ListByAgent(ctx context.Context, agent string, status v1alpha1.TaskStatus) ([]v1alpha1.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE agent=?`
	args := []any{agent}
	if status != "" {
		query += ` AND status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	tasks := []v1alpha1.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateStatus sets status, updated_at and, when non-empty, result in a
// single statement.
func (s Tasks) UpdateStatus(ctx context.Context, id string, status v1alpha1.TaskStatus, result string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid task status %q", status)
	}
	query := `UPDATE tasks SET status=?, updated_at=?, version=version+1`
	args := []any{string(status), nanos(s.now())}
	if result != "" {
		query += `, result=?`
		args = append(args, result)
	}
	query += ` WHERE id=?`
	args = append(args, id)
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("task", id)
	}
	return nil
}

// UpdateStatusIf moves the task from expected to next only if its status is
// still expected. Otherwise it returns ErrConflict, or ErrNotFound when the
// task does not exist.
func (s Tasks) UpdateStatusIf(ctx context.Context, id string, expected, next v1alpha1.TaskStatus, result string) error {
	if !next.Valid() {
		return fmt.Errorf("invalid task status %q", next)
	}
	query := `UPDATE tasks SET status=?, updated_at=?, version=version+1`
	args := []any{string(next), nanos(s.now())}
	if result != "" {
		query += `, result=?`
		args = append(args, result)
	}
	query += ` WHERE id=? AND status=?`
	args = append(args, id, string(expected))
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("task %s is %s, expected %s: %w", id, current.Status, expected, ErrConflict)
}

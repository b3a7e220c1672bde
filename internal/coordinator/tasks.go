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

	"github.com/hortator-ai/conclave/api/v1alpha1"
)

// SaveTask creates a task for agent and returns its id. An empty status
// means pending.
func (c *Coordinator) SaveTask(ctx context.Context, agent, description string, status v1alpha1.TaskStatus, deps []string, metadata map[string]any) (id string, err error) {
	ctx, done := c.observe(ctx, "save_task", attribute.String("conclave.agent", agent))
	defer func() { done(&err) }()

	if strings.TrimSpace(agent) == "" {
		return "", fmt.Errorf("%w: agent is required", ErrInvalid)
	}
	if status == "" {
		status = v1alpha1.TaskPending
	}
	if !status.Valid() {
		return "", fmt.Errorf("%w: task status %q", ErrInvalid, status)
	}
	id, err = c.Tasks.Save(ctx, agent, description, status, deps, metadata)
	c.taskWritten(ctx, id, agent, "task.save", err, map[string]any{"id": id, "status": string(status)})
	if err != nil {
		return "", err
	}
	c.Log.V(1).Info("Saved task", "id", id, "agent", agent, "status", status)
	return id, nil
}

// Task returns one task by id.
func (c *Coordinator) Task(ctx context.Context, id string) (task v1alpha1.Task, err error) {
	ctx, done := c.observe(ctx, "get_task", attribute.String("conclave.task", id))
	defer func() { done(&err) }()
	return c.Tasks.Get(ctx, id)
}

// TasksFor lists agent's tasks, optionally filtered by status.
func (c *Coordinator) TasksFor(ctx context.Context, agent string, status v1alpha1.TaskStatus) (tasks []v1alpha1.Task, err error) {
	ctx, done := c.observe(ctx, "list_tasks", attribute.String("conclave.agent", agent))
	defer func() { done(&err) }()

	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: task status %q", ErrInvalid, status)
	}
	return c.Tasks.ListByAgent(ctx, agent, status)
}

// UpdateTask sets a task's status and, when non-empty, its result. On the
// semantic backend a concurrent update may be lost.
func (c *Coordinator) UpdateTask(ctx context.Context, id string, status v1alpha1.TaskStatus, result string) (err error) {
	ctx, done := c.observe(ctx, "update_task", attribute.String("conclave.task", id))
	defer func() { done(&err) }()

	if !status.Valid() {
		return fmt.Errorf("%w: task status %q", ErrInvalid, status)
	}
	err = c.Tasks.UpdateStatus(ctx, id, status, result)
	c.taskWritten(ctx, id, "", "task.update", err, map[string]any{"id": id, "status": string(status)})
	return err
}

// UpdateTaskIf moves a task from expected to next. A task no longer in
// expected yields an error for which IsConflict is true. The semantic
// backend returns ErrUnsupported.
func (c *Coordinator) UpdateTaskIf(ctx context.Context, id string, expected, next v1alpha1.TaskStatus, result string) (err error) {
	ctx, done := c.observe(ctx, "update_task_if", attribute.String("conclave.task", id))
	defer func() { done(&err) }()

	cas, ok := c.Tasks.(ConditionalTaskStore)
	if !ok {
		return ErrUnsupported
	}
	if !expected.Valid() || !next.Valid() {
		return fmt.Errorf("%w: task status %q -> %q", ErrInvalid, expected, next)
	}
	err = cas.UpdateStatusIf(ctx, id, expected, next, result)
	c.taskWritten(ctx, id, "", "task.update", err, map[string]any{
		"id": id, "status": string(next), "expected": string(expected),
	})
	return err
}

// RelatedTasks returns the topK tasks most similar to query across agents,
// optionally restricted to statuses. Ledger deployments need mirroring
// enabled.
func (c *Coordinator) RelatedTasks(ctx context.Context, query string, topK int, statuses ...v1alpha1.TaskStatus) (tasks []v1alpha1.Task, err error) {
	ctx, done := c.observe(ctx, "related_tasks")
	defer func() { done(&err) }()

	if c.Index == nil {
		return nil, ErrUnsupported
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: task status %q", ErrInvalid, st)
		}
	}
	return c.Index.Search(ctx, query, boundTopK(topK), statuses...)
}

// taskAgent recovers the agent slug from a generated task id
// ("<slug>-<unix-millis>") for entries about tasks that could not be read.
func taskAgent(id string) string {
	if i := strings.LastIndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// MaxTopK caps similarity searches.
const MaxTopK = 100

func boundTopK(k int) int {
	switch {
	case k <= 0:
		return 10
	case k > MaxTopK:
		return MaxTopK
	}
	return k
}

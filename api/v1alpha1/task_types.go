/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package v1alpha1 contains the records shared by every conclave backend:
// tasks, inter-agent communications and project state snapshots.
package v1alpha1

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle status of a Task.
// Transitions are caller-driven; nothing enforces an order.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskStatuses lists every valid status.
var TaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskCompleted, TaskFailed}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// ParseTaskStatus validates a status string. The empty string is rejected.
func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid task status %q (want one of pending, in_progress, completed, failed)", s)
	}
	return st, nil
}

// Task is a unit of work assigned to one agent.
type Task struct {
	ID          string     `json:"id"`
	Agent       string     `json:"agent"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`

	// Dependencies are task ids this task declares it depends on.
	// They are recorded only, never checked.
	Dependencies []string       `json:"dependencies"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTaskID builds a task id from the agent name and the creation time
// in milliseconds. Two tasks saved for the same agent in the same
// millisecond get the same id; the later write overwrites the earlier one.
func NewTaskID(agent string, now time.Time) string {
	return fmt.Sprintf("%s-%d", Slug(agent), now.UnixMilli())
}

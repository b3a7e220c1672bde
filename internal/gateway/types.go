/*
Copyright (c) 2026 GeneClackman
SPDX-License-Identifier: MIT
*/

// Package gateway serves the coordination layer over HTTP so agents that
// cannot link the Go packages can still share tasks, messages and state.
package gateway

import (
	"encoding/json"

	"github.com/hortator-ai/conclave/api/v1alpha1"
)

// SaveTaskRequest is the body of POST /v1/tasks.
type SaveTaskRequest struct {
	Agent        string              `json:"agent"`
	Description  string              `json:"description"`
	Status       v1alpha1.TaskStatus `json:"status,omitempty"`
	Dependencies []string            `json:"dependencies,omitempty"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
}

// UpdateTaskRequest is the body of PATCH /v1/tasks/{id}. A non-empty
// ExpectedStatus makes the update conditional.
type UpdateTaskRequest struct {
	Status         v1alpha1.TaskStatus `json:"status"`
	Result         string              `json:"result,omitempty"`
	ExpectedStatus v1alpha1.TaskStatus `json:"expectedStatus,omitempty"`
}

// SendMessageRequest is the body of POST /v1/messages.
type SendMessageRequest struct {
	From    string               `json:"from"`
	To      string               `json:"to"`
	Message string               `json:"message"`
	Type    v1alpha1.MessageType `json:"type,omitempty"`
	Data    json.RawMessage      `json:"data,omitempty"`
}

// SaveStateRequest is the body of PUT /v1/state. ExpectedVersion makes the
// save conditional on the newest stored snapshot.
type SaveStateRequest struct {
	v1alpha1.ProjectState
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Agent  string `json:"agent"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Model  string `json:"model,omitempty"`
}

type AskResponse struct {
	Text string `json:"text"`
}

// IDResponse is returned by endpoints that create a record.
type IDResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

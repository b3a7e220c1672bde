/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/activity"
	"github.com/hortator-ai/conclave/internal/coordinator"
	"github.com/hortator-ai/conclave/internal/llm"
)

// Service is the coordination surface the handlers call;
// *coordinator.Coordinator implements it.
type Service interface {
	SaveTask(ctx context.Context, agent, description string, status v1alpha1.TaskStatus, deps []string, metadata map[string]any) (string, error)
	Task(ctx context.Context, id string) (v1alpha1.Task, error)
	TasksFor(ctx context.Context, agent string, status v1alpha1.TaskStatus) ([]v1alpha1.Task, error)
	UpdateTask(ctx context.Context, id string, status v1alpha1.TaskStatus, result string) error
	UpdateTaskIf(ctx context.Context, id string, expected, next v1alpha1.TaskStatus, result string) error
	RelatedTasks(ctx context.Context, query string, topK int, statuses ...v1alpha1.TaskStatus) ([]v1alpha1.Task, error)
	Send(ctx context.Context, from, to, message string, typ v1alpha1.MessageType, data any) (string, error)
	Inbox(ctx context.Context, agent string) ([]v1alpha1.Communication, error)
	RelatedMessages(ctx context.Context, query string, topK int) ([]v1alpha1.Communication, error)
	SaveState(ctx context.Context, state v1alpha1.ProjectState) (v1alpha1.ProjectState, error)
	SaveStateIf(ctx context.Context, state v1alpha1.ProjectState, version int64) (v1alpha1.ProjectState, error)
	CurrentState(ctx context.Context) (*v1alpha1.ProjectState, error)
	StateHistory(ctx context.Context, limit int) ([]v1alpha1.ProjectState, error)
	Ask(ctx context.Context, req coordinator.AskRequest) (string, error)
	Recent(ctx context.Context, agent string, limit int) ([]activity.Entry, error)
	Ping(ctx context.Context) error
}

// Handler serves the coordination API.
type Handler struct {
	Service Service
	Log     logr.Logger

	// AuthTokens, when non-empty, are the accepted bearer tokens.
	AuthTokens []string

	// RateLimiter enforces per-client request rate limits.
	RateLimiter *RateLimiter
}

// authenticate validates the Bearer token against the configured tokens.
func (h *Handler) authenticate(r *http.Request) error {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return fmt.Errorf("missing Authorization header")
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return fmt.Errorf("invalid Authorization format, expected Bearer token")
	}
	token := []byte(strings.TrimPrefix(auth, "Bearer "))
	for _, k := range h.AuthTokens {
		if subtle.ConstantTimeCompare(token, []byte(k)) == 1 {
			return nil
		}
	}
	return fmt.Errorf("invalid API key")
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.AuthTokens) > 0 {
			if err := h.authenticate(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error(), "authentication_error", "invalid_api_key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// fail maps a coordinator error onto a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coordinator.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error", "invalid_argument")
	case coordinator.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), "invalid_request_error", "not_found")
	case coordinator.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), "conflict_error", "conflict")
	case errors.Is(err, coordinator.ErrUnsupported):
		writeError(w, http.StatusNotImplemented, err.Error(), "invalid_request_error", "unsupported")
	case errors.Is(err, llm.ErrRetriesExhausted):
		writeError(w, http.StatusBadGateway, err.Error(), "upstream_error", "retries_exhausted")
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
	default:
		h.Log.Error(err, "Request failed", "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, err.Error(), "server_error", "internal")
	}
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error(), "server_error", "unhealthy")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "ok")
}

// ListTasks handles GET /v1/agents/{agent}/tasks?status=.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := v1alpha1.TaskStatus(r.URL.Query().Get("status"))
	tasks, err := h.Service.TasksFor(r.Context(), chi.URLParam(r, "agent"), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask handles POST /v1/tasks.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req SaveTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := h.Service.SaveTask(r.Context(), req.Agent, req.Description, req.Status, req.Dependencies, req.Metadata)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("audit: task.save", "id", id, "agent", req.Agent, "client", ClientKey(r))
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

// GetTask handles GET /v1/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Service.Task(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PATCH /v1/tasks/{id}. With expectedStatus set it
// answers 409 when the task has moved on.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	var err error
	if req.ExpectedStatus != "" {
		err = h.Service.UpdateTaskIf(r.Context(), id, req.ExpectedStatus, req.Status, req.Result)
	} else {
		err = h.Service.UpdateTask(r.Context(), id, req.Status, req.Result)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchTasks handles GET /v1/search/tasks?q=&k=&status=.
func (h *Handler) SearchTasks(w http.ResponseWriter, r *http.Request) {
	q, k, ok := searchParams(w, r)
	if !ok {
		return
	}
	var statuses []v1alpha1.TaskStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			st, err := v1alpha1.ParseTaskStatus(strings.TrimSpace(part))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error", "invalid_status")
				return
			}
			statuses = append(statuses, st)
		}
	}
	tasks, err := h.Service.RelatedTasks(r.Context(), q, k, statuses...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// SearchMessages handles GET /v1/search/messages?q=&k=.
func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	q, k, ok := searchParams(w, r)
	if !ok {
		return
	}
	msgs, err := h.Service.RelatedMessages(r.Context(), q, k)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// ListMessages handles GET /v1/agents/{agent}/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Service.Inbox(r.Context(), chi.URLParam(r, "agent"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// SendMessage handles POST /v1/messages.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	data, err := rawToAny(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid data: "+err.Error(), "invalid_request_error", "invalid_body")
		return
	}
	id, err := h.Service.Send(r.Context(), req.From, req.To, req.Message, req.Type, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("audit: message.send", "id", id, "from", req.From, "to", req.To, "client", ClientKey(r))
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

// GetState handles GET /v1/state. Before the first save it answers 404.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.CurrentState(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "no project state saved yet", "invalid_request_error", "not_found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PutState handles PUT /v1/state.
func (h *Handler) PutState(w http.ResponseWriter, r *http.Request) {
	var req SaveStateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var (
		saved v1alpha1.ProjectState
		err   error
	)
	if req.ExpectedVersion != nil {
		saved, err = h.Service.SaveStateIf(r.Context(), req.ProjectState, *req.ExpectedVersion)
	} else {
		saved, err = h.Service.SaveState(r.Context(), req.ProjectState)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// StateHistory handles GET /v1/state/history?limit=.
func (h *Handler) StateHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", 20)
	if !ok {
		return
	}
	states, err := h.Service.StateHistory(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// Ask handles POST /v1/ask.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text, err := h.Service.Ask(r.Context(), coordinator.AskRequest{
		Agent: req.Agent, Prompt: req.Prompt, System: req.System, Model: req.Model,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Text: text})
}

// Activity handles GET /v1/activity?agent=&limit=.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", 50)
	if !ok {
		return
	}
	entries, err := h.Service.Recent(r.Context(), r.URL.Query().Get("agent"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func searchParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required", "invalid_request_error", "missing_query")
		return "", 0, false
	}
	k, ok := intParam(w, r, "k", 10)
	return q, min(k, coordinator.MaxTopK), ok
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer", "invalid_request_error", "invalid_"+name)
		return 0, false
	}
	return n, true
}

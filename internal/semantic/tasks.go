/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package semantic stores tasks, communications and project state in a
// vector index. Every read is an embed-then-query: records are found by
// similarity to a phrase, narrowed by exact metadata filters.
//
// There is no locking and no compare-and-swap. Concurrent UpdateStatus calls
// on one task can lose an update, and States.Current returns the snapshot
// closest to a fixed phrase, which is not necessarily the newest one.
package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/embedding"
	"github.com/hortator-ai/conclave/internal/vectorstore"
)

// Index partitions.
const (
	PartitionTasks          = "agent_tasks"
	PartitionCommunications = "agent_communications"
	PartitionState          = "project_state"
)

// DefaultListLimit bounds ListByAgent.
const DefaultListLimit = 50

// Tasks is the task store.
type Tasks struct {
	Index    vectorstore.Store
	Embedder embedding.Provider
	Now      func() time.Time
	Limit    int
	Log      logr.Logger
}

// NewTasks returns a task store over index.
func NewTasks(index vectorstore.Store, embedder embedding.Provider) *Tasks {
	return &Tasks{Index: index, Embedder: embedder, Now: time.Now, Limit: DefaultListLimit, Log: logr.Discard()}
}

func (s *Tasks) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Save creates a task and returns its id. The stored vector embeds
// "<agent>: <description>".
func (s *Tasks) Save(ctx context.Context, agent, description string, status v1alpha1.TaskStatus, deps []string, metadata map[string]any) (string, error) {
	if !status.Valid() {
		return "", fmt.Errorf("invalid task status %q", status)
	}
	now := s.now()
	task := v1alpha1.Task{
		ID:           v1alpha1.NewTaskID(agent, now),
		Agent:        agent,
		Description:  description,
		Status:       status,
		Dependencies: deps,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if task.Dependencies == nil {
		task.Dependencies = []string{}
	}
	if err := s.Put(ctx, task); err != nil {
		return "", err
	}
	s.Log.V(1).Info("Saved task", "id", task.ID, "agent", agent, "status", status)
	return task.ID, nil
}

// Put writes task as-is, replacing any record with the same id.
func (s *Tasks) Put(ctx context.Context, task v1alpha1.Task) error {
	vec, err := s.Embedder.Embed(ctx, task.Agent+": "+task.Description)
	if err != nil {
		return fmt.Errorf("embed task: %w", err)
	}
	md, err := taskMetadata(task)
	if err != nil {
		return err
	}
	if err := s.Index.Upsert(ctx, PartitionTasks, vectorstore.Record{ID: task.ID, Vector: vec, Metadata: md}); err != nil {
		return fmt.Errorf("upsert task %s: %w", task.ID, err)
	}
	return nil
}

// ListByAgent returns the agent's tasks, most similar to "<agent> <status>"
// first. An empty status lists every status, ranked against
// "<agent> pendiente".
func (s *Tasks) ListByAgent(ctx context.Context, agent string, status v1alpha1.TaskStatus) ([]v1alpha1.Task, error) {
	phrase := agent + " pendiente"
	filter := &vectorstore.Filter{Must: []vectorstore.Condition{vectorstore.Eq("agent", agent)}}
	if status != "" {
		phrase = agent + " " + string(status)
		filter.Must = append(filter.Must, vectorstore.Eq("status", string(status)))
	}
	vec, err := s.Embedder.Embed(ctx, phrase)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	matches, err := s.Index.Query(ctx, PartitionTasks, vec, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return decodeTasks(matches)
}

// Search returns the topK tasks most similar to query across all agents,
// restricted to the given statuses when any are passed.
func (s *Tasks) Search(ctx context.Context, query string, topK int, statuses ...v1alpha1.TaskStatus) ([]v1alpha1.Task, error) {
	vec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	var filter *vectorstore.Filter
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, st := range statuses {
			values[i] = string(st)
		}
		filter = &vectorstore.Filter{Must: []vectorstore.Condition{vectorstore.In("status", values...)}}
	}
	matches, err := s.Index.Query(ctx, PartitionTasks, vec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return decodeTasks(matches)
}

// Get fetches one task by id.
func (s *Tasks) Get(ctx context.Context, id string) (v1alpha1.Task, error) {
	rec, err := s.Index.Fetch(ctx, PartitionTasks, id)
	if err != nil {
		return v1alpha1.Task{}, err
	}
	return decodeTask(rec.ID, rec.Metadata)
}

// UpdateStatus fetches the task, merges status, updatedAt and a non-empty
// result into its metadata and writes it back under the same vector.
// Read and write are separate round trips: a concurrent update between them
// is overwritten. A missing id yields vectorstore.ErrNotFound.
func (s *Tasks) UpdateStatus(ctx context.Context, id string, status v1alpha1.TaskStatus, result string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid task status %q", status)
	}
	rec, err := s.Index.Fetch(ctx, PartitionTasks, id)
	if err != nil {
		return fmt.Errorf("fetch task %s: %w", id, err)
	}
	if rec.Metadata == nil {
		rec.Metadata = vectorstore.Metadata{}
	}
	rec.Metadata["status"] = string(status)
	rec.Metadata["updatedAt"] = formatTime(s.now())
	if result != "" {
		rec.Metadata["result"] = result
	}
	if err := s.Index.Upsert(ctx, PartitionTasks, rec); err != nil {
		return fmt.Errorf("upsert task %s: %w", id, err)
	}
	s.Log.V(1).Info("Updated task status", "id", id, "status", status)
	return nil
}

func taskMetadata(t v1alpha1.Task) (vectorstore.Metadata, error) {
	deps, err := encodeJSON(t.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("encode dependencies: %w", err)
	}
	meta, err := encodeJSON(t.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return vectorstore.Metadata{
		"id":           t.ID,
		"agent":        t.Agent,
		"description":  t.Description,
		"status":       string(t.Status),
		"result":       t.Result,
		"dependencies": deps,
		"metadata":     meta,
		"createdAt":    formatTime(t.CreatedAt),
		"updatedAt":    formatTime(t.UpdatedAt),
	}, nil
}

func decodeTask(id string, md vectorstore.Metadata) (v1alpha1.Task, error) {
	deps, err := decodeStrings(md, "dependencies")
	if err != nil {
		return v1alpha1.Task{}, err
	}
	meta, err := decodeMap(md, "metadata")
	if err != nil {
		return v1alpha1.Task{}, err
	}
	if stored := md.String("id"); stored != "" {
		id = stored
	}
	return v1alpha1.Task{
		ID:           id,
		Agent:        md.String("agent"),
		Description:  md.String("description"),
		Status:       v1alpha1.TaskStatus(md.String("status")),
		Result:       md.String("result"),
		Dependencies: deps,
		Metadata:     meta,
		CreatedAt:    parseTime(md, "createdAt"),
		UpdatedAt:    parseTime(md, "updatedAt"),
	}, nil
}

func decodeTasks(matches []vectorstore.Match) ([]v1alpha1.Task, error) {
	tasks := make([]v1alpha1.Task, 0, len(matches))
	for _, m := range matches {
		t, err := decodeTask(m.ID, m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", m.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

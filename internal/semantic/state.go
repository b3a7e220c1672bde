/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/embedding"
	"github.com/hortator-ai/conclave/internal/vectorstore"
)

// States is the project state store. Snapshots are append-only.
type States struct {
	Index    vectorstore.Store
	Embedder embedding.Provider
	Now      func() time.Time
	NewID    func() string
	Log      logr.Logger
}

// NewStates returns a project state store over index.
func NewStates(index vectorstore.Store, embedder embedding.Provider) *States {
	return &States{Index: index, Embedder: embedder, Now: time.Now, NewID: uuid.NewString, Log: logr.Discard()}
}

// Save appends a snapshot under a fresh id. A zero LastUpdated is set to now.
// The stored vector embeds "estado proyecto <phase>".
func (s *States) Save(ctx context.Context, state v1alpha1.ProjectState) (v1alpha1.ProjectState, error) {
	if s.NewID != nil {
		state.ID = s.NewID()
	} else {
		state.ID = uuid.NewString()
	}
	if state.LastUpdated.IsZero() {
		if s.Now != nil {
			state.LastUpdated = s.Now()
		} else {
			state.LastUpdated = time.Now()
		}
	}
	vec, err := s.Embedder.Embed(ctx, "estado proyecto "+string(state.Phase))
	if err != nil {
		return state, fmt.Errorf("embed state: %w", err)
	}
	md := vectorstore.Metadata{
		"id":          state.ID,
		"phase":       string(state.Phase),
		"lastUpdated": formatTime(state.LastUpdated),
	}
	for key, list := range map[string][]string{
		"currentTasks":   state.CurrentTasks,
		"completedTasks": state.CompletedTasks,
		"blockers":       state.Blockers,
		"nextActions":    state.NextActions,
	} {
		if list == nil {
			list = []string{}
		}
		enc, err := encodeJSON(list)
		if err != nil {
			return state, fmt.Errorf("encode %s: %w", key, err)
		}
		md[key] = enc
	}
	if err := s.Index.Upsert(ctx, PartitionState, vectorstore.Record{ID: state.ID, Vector: vec, Metadata: md}); err != nil {
		return state, fmt.Errorf("upsert state: %w", err)
	}
	s.Log.V(1).Info("Saved project state", "id", state.ID, "phase", state.Phase)
	return state, nil
}

// Current returns the snapshot closest to "estado proyecto actual", or nil
// when no snapshot exists. Similarity decides, not recency.
func (s *States) Current(ctx context.Context) (*v1alpha1.ProjectState, error) {
	vec, err := s.Embedder.Embed(ctx, "estado proyecto actual")
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.Index.Query(ctx, PartitionState, vec, 1, nil)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	md := matches[0].Metadata
	state := &v1alpha1.ProjectState{
		ID:          matches[0].ID,
		Phase:       v1alpha1.Phase(md.String("phase")),
		LastUpdated: parseTime(md, "lastUpdated"),
	}
	for key, dst := range map[string]*[]string{
		"currentTasks":   &state.CurrentTasks,
		"completedTasks": &state.CompletedTasks,
		"blockers":       &state.Blockers,
		"nextActions":    &state.NextActions,
	} {
		list, err := decodeStrings(md, key)
		if err != nil {
			return nil, err
		}
		*dst = list
	}
	return state, nil
}

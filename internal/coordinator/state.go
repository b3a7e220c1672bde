/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hortator-ai/conclave/api/v1alpha1"
)

const stateAgent = "coordinator"

// SaveState appends a project state snapshot and returns it as stored.
func (c *Coordinator) SaveState(ctx context.Context, state v1alpha1.ProjectState) (saved v1alpha1.ProjectState, err error) {
	ctx, done := c.observe(ctx, "save_state", attribute.String("conclave.phase", string(state.Phase)))
	defer func() { done(&err) }()

	if !state.Phase.Valid() {
		return state, fmt.Errorf("%w: phase %q", ErrInvalid, state.Phase)
	}
	saved, err = c.States.Save(ctx, state)
	c.record(ctx, stateAgent, "state.save", err, map[string]any{"id": saved.ID, "phase": string(state.Phase)})
	return saved, err
}

// SaveStateIf appends a snapshot only if the newest one still has version.
// Version 0 means no snapshot has been saved yet.
func (c *Coordinator) SaveStateIf(ctx context.Context, state v1alpha1.ProjectState, version int64) (saved v1alpha1.ProjectState, err error) {
	ctx, done := c.observe(ctx, "save_state_if", attribute.Int64("conclave.version", version))
	defer func() { done(&err) }()

	if !state.Phase.Valid() {
		return state, fmt.Errorf("%w: phase %q", ErrInvalid, state.Phase)
	}
	vs, ok := c.States.(VersionedStateStore)
	if !ok {
		return state, ErrUnsupported
	}
	saved, err = vs.SaveIfVersion(ctx, state, version)
	c.record(ctx, stateAgent, "state.save", err, map[string]any{
		"id": saved.ID, "phase": string(state.Phase), "expectedVersion": version,
	})
	return saved, err
}

// CurrentState returns the current snapshot, or nil before the first save.
// On the semantic backend this is the closest match to a fixed phrase and
// may not be the newest snapshot.
func (c *Coordinator) CurrentState(ctx context.Context) (state *v1alpha1.ProjectState, err error) {
	ctx, done := c.observe(ctx, "current_state")
	defer func() { done(&err) }()
	return c.States.Current(ctx)
}

// AdvancePhase saves a copy of the current snapshot moved to the next phase
// in the documented order. Before the first save it starts at
// initialization. On the ledger backend the write is conditional on the
// snapshot it read.
func (c *Coordinator) AdvancePhase(ctx context.Context) (saved v1alpha1.ProjectState, err error) {
	cur, err := c.CurrentState(ctx)
	if err != nil {
		return saved, err
	}
	next := v1alpha1.ProjectState{Phase: v1alpha1.PhaseInitialization}
	var version int64
	if cur != nil {
		next = *cur
		next.ID, next.Version, next.LastUpdated = "", 0, time.Time{}
		next.Phase = cur.Phase.Next()
		version = cur.Version
	}
	if _, ok := c.States.(VersionedStateStore); ok {
		return c.SaveStateIf(ctx, next, version)
	}
	return c.SaveState(ctx, next)
}

// StateHistory returns up to limit snapshots, newest first.
func (c *Coordinator) StateHistory(ctx context.Context, limit int) (states []v1alpha1.ProjectState, err error) {
	ctx, done := c.observe(ctx, "state_history")
	defer func() { done(&err) }()

	vs, ok := c.States.(VersionedStateStore)
	if !ok {
		return nil, ErrUnsupported
	}
	return vs.History(ctx, limit)
}

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

	"github.com/google/uuid"

	"github.com/hortator-ai/conclave/api/v1alpha1"
)

// States is the SQL project state store. Snapshots are append-only; the
// current one is the newest by (updated_at, seq).
type States struct {
	DB    *sql.DB
	Now   func() time.Time
	NewID func() string
}

// currentSeq selects the seq of the snapshot Current returns.
const currentSeq = `SELECT seq FROM project_state ORDER BY updated_at DESC, seq DESC LIMIT 1`

const stateColumns = `seq, id, phase, current_tasks_json, completed_tasks_json, blockers_json, next_actions_json, updated_at`

func (s States) prepare(state v1alpha1.ProjectState) (v1alpha1.ProjectState, []any, error) {
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
	args := []any{state.ID, string(state.Phase)}
	for _, list := range [][]string{state.CurrentTasks, state.CompletedTasks, state.Blockers, state.NextActions} {
		if list == nil {
			list = []string{}
		}
		enc, err := encodeJSON(list)
		if err != nil {
			return state, nil, err
		}
		args = append(args, enc)
	}
	args = append(args, nanos(state.LastUpdated))
	return state, args, nil
}

// Save appends a snapshot and returns it with ID and Version filled in.
func (s States) Save(ctx context.Context, state v1alpha1.ProjectState) (v1alpha1.ProjectState, error) {
	state, args, err := s.prepare(state)
	if err != nil {
		return state, fmt.Errorf("encode state: %w", err)
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO project_state(id, phase, current_tasks_json, completed_tasks_json, blockers_json, next_actions_json, updated_at)
		 VALUES (?,?,?,?,?,?,?)`, args...)
	if err != nil {
		return state, fmt.Errorf("insert state: %w", err)
	}
	state.Version, _ = res.LastInsertId()
	return state, nil
}

// SaveIfVersion appends a snapshot only if the snapshot Current would
// return still has the given version (0 meaning "no snapshot yet").
// Otherwise it returns ErrConflict.
func (s States) SaveIfVersion(ctx context.Context, state v1alpha1.ProjectState, version int64) (v1alpha1.ProjectState, error) {
	state, args, err := s.prepare(state)
	if err != nil {
		return state, fmt.Errorf("encode state: %w", err)
	}
	args = append(args, version)
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO project_state(id, phase, current_tasks_json, completed_tasks_json, blockers_json, next_actions_json, updated_at)
		 SELECT ?,?,?,?,?,?,? FROM (SELECT COALESCE((`+currentSeq+`), 0) AS v) cur WHERE cur.v = ?`, args...)
	if err != nil {
		return state, fmt.Errorf("insert state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return state, fmt.Errorf("project state moved past version %d: %w", version, ErrConflict)
	}
	state.Version, _ = res.LastInsertId()
	return state, nil
}

func scanState(row rowScanner) (v1alpha1.ProjectState, error) {
	var (
		st                                v1alpha1.ProjectState
		phase, current, done, block, next string
		updated                           int64
	)
	if err := row.Scan(&st.Version, &st.ID, &phase, &current, &done, &block, &next, &updated); err != nil {
		return st, err
	}
	st.Phase = v1alpha1.Phase(phase)
	st.LastUpdated = fromNanos(updated)
	var err error
	if st.CurrentTasks, err = decodeStrings(current); err != nil {
		return st, err
	}
	if st.CompletedTasks, err = decodeStrings(done); err != nil {
		return st, err
	}
	if st.Blockers, err = decodeStrings(block); err != nil {
		return st, err
	}
	if st.NextActions, err = decodeStrings(next); err != nil {
		return st, err
	}
	return st, nil
}

// Current returns the newest snapshot, or nil when there is none.
func (s States) Current(ctx context.Context) (*v1alpha1.ProjectState, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM project_state ORDER BY updated_at DESC, seq DESC LIMIT 1`)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current state: %w", err)
	}
	return &st, nil
}

// History returns up to limit snapshots, newest first.
func (s States) History(ctx context.Context, limit int) ([]v1alpha1.ProjectState, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM project_state ORDER BY updated_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("read state history: %w", err)
	}
	defer rows.Close()
	out := []v1alpha1.ProjectState{}
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package v1alpha1

import (
	"fmt"
	"time"
)

// Phase is the coarse project phase recorded in a ProjectState.
type Phase string

const (
	PhaseInitialization Phase = "initialization"
	PhasePlanning       Phase = "planning"
	PhaseDevelopment    Phase = "development"
	PhaseTesting        Phase = "testing"
	PhaseDeployment     Phase = "deployment"
	PhaseCompleted      Phase = "completed"
)

// Phases is the documented phase order. Membership is checked on save;
// the order between saves is not.
var Phases = []Phase{
	PhaseInitialization,
	PhasePlanning,
	PhaseDevelopment,
	PhaseTesting,
	PhaseDeployment,
	PhaseCompleted,
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	for _, ph := range Phases {
		if ph == p {
			return true
		}
	}
	return false
}

// ParsePhase validates a phase string. The empty string is rejected.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid phase %q (want one of initialization, planning, development, testing, deployment, completed)", s)
	}
	return p, nil
}

// Next returns the phase after p in the documented order, or p itself when
// p is the last phase or not a known phase.
func (p Phase) Next() Phase {
	for i, ph := range Phases {
		if ph == p && i+1 < len(Phases) {
			return Phases[i+1]
		}
	}
	return p
}

// ProjectState is one snapshot of process-wide project state. Every save
// appends a new snapshot.
type ProjectState struct {
	ID             string    `json:"id,omitempty"`
	Phase          Phase     `json:"phase"`
	CurrentTasks   []string  `json:"currentTasks"`
	CompletedTasks []string  `json:"completedTasks"`
	Blockers       []string  `json:"blockers"`
	NextActions    []string  `json:"nextActions"`
	LastUpdated    time.Time `json:"lastUpdated"`

	// Version is the ledger sequence number of the snapshot. The semantic
	// backend leaves it zero.
	Version int64 `json:"version,omitempty"`
}

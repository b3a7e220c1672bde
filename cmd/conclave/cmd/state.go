/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/coordinator"
)

var (
	statePhase     string
	stateCurrent   []string
	stateCompleted []string
	stateBlockers  []string
	stateNext      []string
	stateExpect    int64
	stateLimit     int
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Record and read the shared project state",
}

var stateSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Append a project state snapshot",
	Long: `Append a project state snapshot.

With --expect-version the snapshot is only written while the newest stored
snapshot has that version (ledger backend only; 0 means none saved yet).

Examples:
  conclave state save --phase development --current dev-1,dev-2 --next "review PR"`,
	Args: cobra.NoArgs,
	RunE: runStateSave,
}

var stateCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current project state",
	Args:  cobra.NoArgs,
	RunE:  runStateCurrent,
}

var stateAdvanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Move the project to the next phase",
	Long: `Save a copy of the current snapshot moved to the next phase
(initialization, planning, development, testing, deployment, completed).
On the ledger backend the write fails if another snapshot lands first.`,
	Args: cobra.NoArgs,
	RunE: runStateAdvance,
}

var stateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past project state snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runStateHistory,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateSaveCmd, stateCurrentCmd, stateAdvanceCmd, stateHistoryCmd)

	f := stateSaveCmd.Flags()
	f.StringVar(&statePhase, "phase", string(v1alpha1.PhaseInitialization), "Project phase")
	f.StringSliceVar(&stateCurrent, "current", nil, "Task ids in progress")
	f.StringSliceVar(&stateCompleted, "completed", nil, "Task ids completed")
	f.StringSliceVar(&stateBlockers, "blockers", nil, "Open blockers")
	f.StringSliceVar(&stateNext, "next", nil, "Next actions")
	f.Int64Var(&stateExpect, "expect-version", -1, "Only save while the newest snapshot has this version")

	stateHistoryCmd.Flags().IntVar(&stateLimit, "limit", 20, "Maximum snapshots to list")
}

func runStateSave(cmd *cobra.Command, _ []string) error {
	phase, err := v1alpha1.ParsePhase(statePhase)
	if err != nil {
		return err
	}
	st := v1alpha1.ProjectState{
		Phase:          phase,
		CurrentTasks:   stateCurrent,
		CompletedTasks: stateCompleted,
		Blockers:       stateBlockers,
		NextActions:    stateNext,
	}
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		var (
			saved v1alpha1.ProjectState
			err   error
		)
		if stateExpect >= 0 {
			saved, err = c.SaveStateIf(ctx, st, stateExpect)
		} else {
			saved, err = c.SaveState(ctx, st)
		}
		if err != nil {
			return err
		}
		return renderState(cmd.OutOrStdout(), saved)
	})
}

func runStateCurrent(cmd *cobra.Command, _ []string) error {
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		st, err := c.CurrentState(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No project state saved yet.")
			return nil
		}
		return renderState(cmd.OutOrStdout(), *st)
	})
}

func runStateAdvance(cmd *cobra.Command, _ []string) error {
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		saved, err := c.AdvancePhase(ctx)
		if err != nil {
			return err
		}
		return renderState(cmd.OutOrStdout(), saved)
	})
}

func runStateHistory(cmd *cobra.Command, _ []string) error {
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		states, err := c.StateHistory(ctx, stateLimit)
		if err != nil {
			return err
		}
		return renderStates(cmd.OutOrStdout(), states)
	})
}

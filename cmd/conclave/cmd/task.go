/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/coordinator"
)

var (
	taskAgent       string
	taskDescription string
	taskSaveStatus  string
	taskListStatus  string
	taskNextStatus  string
	taskDeps        []string
	taskMetadata    string
	taskResult      string
	taskExpected    string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Save, list and update agent tasks",
}

var taskSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create a task for an agent",
	Long: `Create a task for an agent and print its id.

Examples:
  conclave task save --agent "QA Agent" --description "Run smoke tests" \
    --metadata '{"phase":"testing"}'`,
	Args: cobra.NoArgs,
	RunE: runTaskSave,
}

var taskListCmd = &cobra.Command{
	Use:   "list AGENT",
	Short: "List an agent's tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskList,
}

var taskGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Set a task's status and result",
	Long: `Set a task's status and, when given, its result.

With --expect the update only applies while the task still has that status
(ledger backend only); otherwise the command fails with a conflict.

Examples:
  conclave task update qa-agent-1767225600000 --status completed --result "12/12 passed"
  conclave task update qa-agent-1767225600000 --status in_progress --expect pending`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskUpdate,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskSaveCmd, taskListCmd, taskGetCmd, taskUpdateCmd)

	taskSaveCmd.Flags().StringVar(&taskAgent, "agent", "", "Agent the task is assigned to (required)")
	taskSaveCmd.Flags().StringVar(&taskDescription, "description", "", "What the agent should do")
	taskSaveCmd.Flags().StringVar(&taskSaveStatus, "status", string(v1alpha1.TaskPending), "Initial status")
	taskSaveCmd.Flags().StringSliceVar(&taskDeps, "depends-on", nil, "Ids of tasks this one depends on")
	taskSaveCmd.Flags().StringVar(&taskMetadata, "metadata", "", "Metadata as a JSON object")
	_ = taskSaveCmd.MarkFlagRequired("agent")

	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Filter by status")

	taskUpdateCmd.Flags().StringVar(&taskNextStatus, "status", "", "New status (required)")
	taskUpdateCmd.Flags().StringVar(&taskResult, "result", "", "Result text")
	taskUpdateCmd.Flags().StringVar(&taskExpected, "expect", "", "Only update while the task has this status")
	_ = taskUpdateCmd.MarkFlagRequired("status")
}

func runTaskSave(cmd *cobra.Command, _ []string) error {
	var md map[string]any
	if taskMetadata != "" {
		if err := json.Unmarshal([]byte(taskMetadata), &md); err != nil {
			return fmt.Errorf("--metadata must be a JSON object: %w", err)
		}
	}
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		id, err := c.SaveTask(ctx, taskAgent, taskDescription, v1alpha1.TaskStatus(taskSaveStatus), taskDeps, md)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		tasks, err := c.TasksFor(ctx, args[0], v1alpha1.TaskStatus(taskListStatus))
		if err != nil {
			return err
		}
		return renderTasks(cmd.OutOrStdout(), tasks)
	})
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		task, err := c.Task(ctx, args[0])
		if err != nil {
			return err
		}
		return renderTasks(cmd.OutOrStdout(), []v1alpha1.Task{task})
	})
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		next := v1alpha1.TaskStatus(taskNextStatus)
		var err error
		if taskExpected != "" {
			err = c.UpdateTaskIf(ctx, args[0], v1alpha1.TaskStatus(taskExpected), next, taskResult)
		} else {
			err = c.UpdateTask(ctx, args[0], next, taskResult)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], next)
		return nil
	})
}

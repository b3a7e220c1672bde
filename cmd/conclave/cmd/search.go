/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/coordinator"
)

var (
	searchTopK     int
	searchMessages bool
	searchStatuses []string
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Find tasks or messages similar to a query",
	Long: `Find the tasks (or, with --messages, the messages) closest in meaning to a
query. The ledger backend needs mirror: true in the config.

Examples:
  conclave search flaky login tests -k 5
  conclave search smoke tests --status pending,failed
  conclave search --messages deployment window`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", 10, "Number of results")
	searchCmd.Flags().BoolVar(&searchMessages, "messages", false, "Search messages instead of tasks")
	searchCmd.Flags().StringSliceVar(&searchStatuses, "status", nil, "Only tasks with these statuses")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		if searchMessages {
			msgs, err := c.RelatedMessages(ctx, query, searchTopK)
			if err != nil {
				return err
			}
			return renderMessages(cmd.OutOrStdout(), msgs)
		}
		statuses := make([]v1alpha1.TaskStatus, 0, len(searchStatuses))
		for _, raw := range searchStatuses {
			st, err := v1alpha1.ParseTaskStatus(raw)
			if err != nil {
				return err
			}
			statuses = append(statuses, st)
		}
		tasks, err := c.RelatedTasks(ctx, query, searchTopK, statuses...)
		if err != nil {
			return err
		}
		return renderTasks(cmd.OutOrStdout(), tasks)
	})
}

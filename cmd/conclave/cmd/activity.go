/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hortator-ai/conclave/internal/coordinator"
)

var (
	activityAgent string
	activityLimit int
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the recorded activity trail, newest first",
	Long: `Show the recorded activity trail, newest first. Requires activity.enabled
in the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
			entries, err := c.Recent(ctx, activityAgent, activityLimit)
			if err != nil {
				return err
			}
			return renderActivity(cmd.OutOrStdout(), entries)
		})
	},
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.Flags().StringVar(&activityAgent, "agent", "", "Only this agent's entries")
	activityCmd.Flags().IntVar(&activityLimit, "limit", 50, "Maximum entries")
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hortator-ai/conclave/internal/coordinator"
)

var (
	askAgent   string
	askSystem  string
	askRetries int
)

var askCmd = &cobra.Command{
	Use:   "ask PROMPT...",
	Short: "Send a prompt to the configured model on behalf of an agent",
	Long: `Send a prompt to the configured chat-completion endpoint and print the reply.

Rate limits and server errors are retried with exponential backoff.

Examples:
  OPENROUTER_API_KEY=... conclave ask --agent Planner --model openai/gpt-4o-mini \
    "Summarise the open blockers"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askAgent, "agent", "cli", "Agent the call is made for")
	askCmd.Flags().StringVar(&askSystem, "system", "", "System prompt")
	askCmd.Flags().String("model", "", "Model id (defaults to llm.defaultModel)")
	askCmd.Flags().IntVar(&askRetries, "max-retries", 0, "Attempt budget (defaults to llm.maxRetries)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		text, err := c.Ask(ctx, coordinator.AskRequest{
			Agent:      askAgent,
			Prompt:     strings.Join(args, " "),
			System:     askSystem,
			MaxRetries: askRetries,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	})
}

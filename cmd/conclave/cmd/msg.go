/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hortator-ai/conclave/api/v1alpha1"
	"github.com/hortator-ai/conclave/internal/coordinator"
)

var (
	msgFrom string
	msgTo   string
	msgType string
	msgData string
)

var msgCmd = &cobra.Command{
	Use:     "msg",
	Aliases: []string{"message"},
	Short:   "Send messages between agents and read inboxes",
}

var msgSendCmd = &cobra.Command{
	Use:   "send MESSAGE...",
	Short: "Send a message from one agent to another",
	Long: `Send a message from one agent to another and print its id.

Examples:
  conclave msg send --from Planner --to "QA Agent" --type request \
    --data '{"suite":"smoke"}' run the smoke suite`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMsgSend,
}

var msgInboxCmd = &cobra.Command{
	Use:   "inbox AGENT",
	Short: "Show messages sent by or to an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runMsgInbox,
}

func init() {
	rootCmd.AddCommand(msgCmd)
	msgCmd.AddCommand(msgSendCmd, msgInboxCmd)

	msgSendCmd.Flags().StringVar(&msgFrom, "from", "", "Sending agent (required)")
	msgSendCmd.Flags().StringVar(&msgTo, "to", "", "Receiving agent (required)")
	msgSendCmd.Flags().StringVar(&msgType, "type", string(v1alpha1.MessageNotification), "request, response, notification or data")
	msgSendCmd.Flags().StringVar(&msgData, "data", "", "Payload as JSON")
	_ = msgSendCmd.MarkFlagRequired("from")
	_ = msgSendCmd.MarkFlagRequired("to")
}

func runMsgSend(cmd *cobra.Command, args []string) error {
	typ, err := v1alpha1.ParseMessageType(msgType)
	if err != nil {
		return err
	}
	var data any
	if msgData != "" {
		if err := json.Unmarshal([]byte(msgData), &data); err != nil {
			return fmt.Errorf("--data must be JSON: %w", err)
		}
	}
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		id, err := c.Send(ctx, msgFrom, msgTo, strings.Join(args, " "), typ, data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
}

func runMsgInbox(cmd *cobra.Command, args []string) error {
	return withCoordinator(cmd, func(ctx context.Context, c *coordinator.Coordinator) error {
		msgs, err := c.Inbox(ctx, args[0])
		if err != nil {
			return err
		}
		return renderMessages(cmd.OutOrStdout(), msgs)
	})
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hortator-ai/conclave/internal/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the coordination HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return gateway.Run(ctx, cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to server.addr)")
	serveCmd.Flags().Int("rate-limit", 0, "Requests per minute per client (defaults to server.rateLimit)")
}

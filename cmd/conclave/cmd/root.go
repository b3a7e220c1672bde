/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hortator-ai/conclave/internal/config"
	"github.com/hortator-ai/conclave/internal/coordinator"
	"github.com/hortator-ai/conclave/internal/logging"
)

var (
	// cfgFile is the optional YAML config path
	cfgFile string
	// outputFormat is the output format (json, yaml, table)
	outputFormat string

	v   *viper.Viper
	cfg config.Config
	log logr.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "conclave",
	Short: "Shared tasks, messages and project state for cooperating AI agents",
	Long: `conclave is the coordination layer a team of AI agents shares: a task
board, a message bus and a project state record, backed either by a vector
index (semantic backend) or by SQL (ledger backend).

Examples:
  # Assign a task
  conclave task save --agent "QA Agent" --description "Run smoke tests"

  # List an agent's pending tasks
  conclave task list "QA Agent" --status pending

  # Send a message and read an inbox
  conclave msg send --from Planner --to "QA Agent" "please run the smoke suite"
  conclave msg inbox "QA Agent"

  # Serve the HTTP API
  conclave serve --addr :8080`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "Coordination backend: semantic or ledger")
}

// persistentKeys maps root flags onto config keys.
var persistentKeys = map[string]string{
	"log-level": "log.level",
	"backend":   "backend",
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	switch outputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	v = config.NewViper()
	if err := config.BindFlags(v, cmd.Root().PersistentFlags(), persistentKeys); err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags(), commandKeys); err != nil {
		return err
	}
	var err error
	if cfg, err = config.Load(v, cfgFile); err != nil {
		return err
	}
	if log, err = logging.New(cfg.Log.Level, cfg.Log.Development); err != nil {
		return err
	}
	return nil
}

// commandKeys maps subcommand flags that override config keys.
var commandKeys = map[string]string{
	"addr":       "server.addr",
	"rate-limit": "server.rateLimit",
	"model":      "llm.defaultModel",
}

// withCoordinator builds a coordinator for the duration of fn.
func withCoordinator(cmd *cobra.Command, fn func(ctx context.Context, c *coordinator.Coordinator) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, closeFn, err := coordinator.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			log.Error(cerr, "Closing coordinator")
		}
	}()
	return fn(ctx, c)
}

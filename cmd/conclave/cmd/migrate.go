/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hortator-ai/conclave/internal/db"
	"github.com/hortator-ai/conclave/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the ledger database",
	Long: `Apply pending schema migrations to the ledger database (and the activity
database when it is configured separately). Other commands migrate on start;
this is for deploy pipelines that run it ahead of time.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	targets := []db.Config{cfg.Ledger}
	if act := cfg.ActivityDatabase(); act != cfg.Ledger {
		targets = append(targets, act)
	}
	for _, target := range targets {
		dialect := db.Dialect(target.Driver)
		conn, err := db.Open(target)
		if err != nil {
			return err
		}
		version, err := migrate.Migrate(cmd.Context(), conn, dialect)
		_ = conn.Close()
		if err != nil {
			return err
		}
		latest, _ := migrate.Latest(dialect)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (latest %d)\n", dialect, version, latest)
	}
	return nil
}

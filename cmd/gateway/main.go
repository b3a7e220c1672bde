/*
Copyright (c) 2026 GeneClackman
SPDX-License-Identifier: MIT
*/

/*
conclave gateway: the coordination API as a standalone service.

	Agent → HTTP /v1/... → Gateway → Coordinator → vector index | SQL ledger
	                                             → activity log
	Prometheus ← /metrics

Configuration comes from --config, CONCLAVE_* environment variables and the
flags below, in increasing precedence. `conclave serve` runs the same server.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hortator-ai/conclave/internal/config"
	"github.com/hortator-ai/conclave/internal/gateway"
	"github.com/hortator-ai/conclave/internal/logging"
)

func main() {
	fs := pflag.NewFlagSet("gateway", pflag.ExitOnError)
	cfgFile := fs.String("config", "", "Path to a YAML config file")
	fs.String("addr", "", "Listen address")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.Int("rate-limit", 0, "Requests per minute per client; 0 disables")
	fs.String("backend", "", "Coordination backend: semantic or ledger")
	_ = fs.Parse(os.Args[1:])

	v := config.NewViper()
	if err := config.BindFlags(v, fs, map[string]string{
		"addr":       "server.addr",
		"log-level":  "log.level",
		"rate-limit": "server.rateLimit",
		"backend":    "backend",
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(v, *cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gateway.Run(ctx, cfg, log); err != nil {
		log.Error(err, "gateway failed")
		os.Exit(1)
	}
}

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package logging builds the logr.Logger shared by conclave binaries.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// New returns a zap-backed logger at level ("debug", "info", "warn",
// "error"). Development mode switches to console output with stack traces on
// warnings.
func New(level string, development bool) (logr.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development || level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	}
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return logr.Discard(), fmt.Errorf("log level: %w", err)
	}
	cfg.Level = lvl
	z, err := cfg.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(z), nil
}

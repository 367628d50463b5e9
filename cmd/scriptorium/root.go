// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/logging"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitConfig     = 2
	exitDependency = 3
)

// exitError carries the process exit code up through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error     { return &exitError{code: exitConfig, err: err} }
func dependencyError(err error) error { return &exitError{code: exitDependency, err: err} }

// loadedConfig is populated by the root PersistentPreRunE.
var loadedConfig *config.Config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scriptorium",
		Short:         "Video ingestion pipeline and hybrid retrieval",
		Long:          "Scriptorium ingests channel videos (scrape, transcribe, summarize, index)\nand serves hybrid retrieval over the indexed corpus.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return configError(err)
			}
			loadedConfig = cfg
			logging.Init(logging.Config{
				Level:     cfg.Logging.Level,
				Format:    cfg.Logging.Format,
				Caller:    cfg.Logging.Caller,
				Timestamp: true,
			})
			return nil
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newRunDailyCmd())
	root.AddCommand(newQueryDLQCmd())
	root.AddCommand(newReplayDLQCmd())
	root.AddCommand(newRetrieveCmd())
	return root
}

// run executes the CLI and maps errors to exit codes.
func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return exitFailure
	}
	return exitOK
}

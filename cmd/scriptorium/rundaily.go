// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newRunDailyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-daily",
		Short: "Execute one full pipeline run and print its summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(loadedConfig)
			if err != nil {
				return dependencyError(err)
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, runErr := a.runner.Run(ctx)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return fmt.Errorf("encode summary: %w", err)
			}
			if runErr != nil {
				return fmt.Errorf("run %s: %w", summary.RunID, runErr)
			}
			if summary.Failed > 0 {
				return fmt.Errorf("run %s finished with %d failed videos", summary.RunID, summary.Failed)
			}
			return nil
		},
	}
}

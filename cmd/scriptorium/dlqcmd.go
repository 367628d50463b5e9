// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/scriptorium/internal/dlq"
	"github.com/tomtom215/scriptorium/internal/models"
)

func newQueryDLQCmd() *cobra.Command {
	var (
		severity        string
		jobType         string
		videoID         string
		includeReplayed bool
		limit           int
	)

	cmd := &cobra.Command{
		Use:   "query-dlq",
		Short: "List dead-lettered jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(loadedConfig)
			if err != nil {
				return dependencyError(err)
			}
			defer a.close()

			f := dlq.QueryFilter{
				JobType:         jobType,
				VideoID:         videoID,
				IncludeReplayed: includeReplayed,
				Limit:           limit,
			}
			if severity != "" {
				sev := models.Severity(severity)
				if !sev.Valid() {
					return configError(fmt.Errorf("unknown severity %q", severity))
				}
				f.Severity = sev
			}

			entries, err := a.queue.Query(cmd.Context(), f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}

	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity (low, medium, high, critical)")
	cmd.Flags().StringVar(&jobType, "job-type", "", "filter by job type")
	cmd.Flags().StringVar(&videoID, "video-id", "", "filter by video ID")
	cmd.Flags().BoolVar(&includeReplayed, "include-replayed", false, "include already replayed entries")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum entries to list")
	return cmd
}

func newReplayDLQCmd() *cobra.Command {
	var (
		jobID    string
		severity string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "replay-dlq",
		Short: "Replay dead-lettered jobs through their stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (jobID == "") == (severity == "") {
				return configError(fmt.Errorf("provide exactly one of --job-id or --severity"))
			}

			a, err := buildApp(loadedConfig)
			if err != nil {
				return dependencyError(err)
			}
			defer a.close()

			if jobID != "" {
				if _, err := a.replayer.Replay(cmd.Context(), jobID); err != nil {
					return fmt.Errorf("replay %s: %w", jobID, err)
				}
				fmt.Println("replayed 1 job")
				return nil
			}

			sev := models.Severity(severity)
			if !sev.Valid() {
				return configError(fmt.Errorf("unknown severity %q", severity))
			}
			replayed, failed, err := a.replayer.ReplayBySeverity(cmd.Context(), sev, limit)
			if err != nil {
				return err
			}
			fmt.Printf("replayed %d jobs, %d failed\n", replayed, failed)
			if failed > 0 {
				return fmt.Errorf("%d replays failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "replay one entry by job ID")
	cmd.Flags().StringVar(&severity, "severity", "", "replay all entries of a severity")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap replays when using --severity (0 = all)")
	return cmd
}

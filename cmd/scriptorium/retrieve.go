// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/retrieval"
	"github.com/tomtom215/scriptorium/internal/sinks"
)

func newRetrieveCmd() *cobra.Command {
	var (
		topK           int
		channelID      string
		publishedAfter string
		maxDurationSec int
	)

	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Run a hybrid retrieval query against the indexed corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(loadedConfig)
			if err != nil {
				return dependencyError(err)
			}
			defer a.close()

			q := retrieval.Query{
				Text: strings.Join(args, " "),
				TopK: topK,
				Filters: sinks.Filters{
					ChannelID:      channelID,
					MaxDurationSec: maxDurationSec,
				},
			}
			if publishedAfter != "" {
				t, err := time.Parse("2006-01-02", publishedAfter)
				if err != nil {
					return configError(fmt.Errorf("parse --published-after: %w", err))
				}
				q.Filters.PublishedAfter = t
			}

			ctx := logging.ContextWithRequestID(cmd.Context(), logging.GenerateRequestID())
			resp, err := a.engine.Retrieve(ctx, q)
			if err != nil {
				return err
			}
			outcome := a.enforcer.Apply(ctx, logging.RequestIDFromContext(ctx), resp.Hits)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"hits":          outcome.Hits,
				"routing":       resp.Routing,
				"sources":       resp.Sources,
				"degraded":      resp.Degraded,
				"policy_action": outcome.Action,
			})
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", -1, "result count (-1 = configured default)")
	cmd.Flags().StringVar(&channelID, "channel", "", "restrict to one channel ID")
	cmd.Flags().StringVar(&publishedAfter, "published-after", "", "restrict to videos published after YYYY-MM-DD")
	cmd.Flags().IntVar(&maxDurationSec, "max-duration-sec", 0, "restrict by maximum duration")
	return cmd
}

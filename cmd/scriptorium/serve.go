// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/supervisor"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline scheduler, event consumer, and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(loadedConfig)
			if err != nil {
				return dependencyError(err)
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
			tree.AddPipelineService(a.scheduler)
			tree.AddMessagingService(supervisor.NewService("event-consumer", a.consumer.Run))
			tree.AddMessagingService(supervisor.NewService("websocket-hub", a.hub.Serve))
			tree.AddAPIService(a.server)

			logging.Info().Str("addr", a.server.Addr()).Msg("scriptorium starting")
			err = tree.Serve(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			if unstopped, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(unstopped) > 0 {
				logging.Warn().Int("count", len(unstopped)).Msg("services missed shutdown deadline")
			}
			logging.Info().Msg("scriptorium stopped")
			return nil
		},
	}
}

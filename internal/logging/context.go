// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context keys for logging.
type contextKey string

const (
	// requestIDKey is the context key for HTTP request IDs.
	requestIDKey contextKey = "request_id"

	// runIDKey is the context key for pipeline run IDs.
	runIDKey contextKey = "run_id"

	// videoIDKey is the context key for the video a job is operating on.
	videoIDKey contextKey = "video_id"
)

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a new context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRunID returns a new context carrying the pipeline run ID.
// The dispatcher sets this once per run; workers inherit it.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext retrieves the pipeline run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithVideoID returns a new context carrying the video ID a stage
// job is operating on.
func ContextWithVideoID(ctx context.Context, videoID string) context.Context {
	return context.WithValue(ctx, videoIDKey, videoID)
}

// VideoIDFromContext retrieves the video ID from context.
func VideoIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(videoIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger with context identifiers (request_id, run_id,
// video_id) automatically attached. This is the recommended way to log from
// handlers and workers.
//
//	logging.Ctx(ctx).Info().Msg("Stage completed")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logCtx = logCtx.Str("request_id", requestID)
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		logCtx = logCtx.Str("run_id", runID)
	}
	if videoID := VideoIDFromContext(ctx); videoID != "" {
		logCtx = logCtx.Str("video_id", videoID)
	}

	logger := logCtx.Logger()
	return &logger
}

// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package eventbus

import (
	"context"

	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/logging"
)

// TransitionPublisher forwards committed catalog transitions onto the bus.
// The catalog calls it while holding the per-video lock, so publish errors
// are logged rather than propagated.
type TransitionPublisher struct {
	bus *Bus
}

// NewTransitionPublisher wires the bus as a catalog event sink.
func NewTransitionPublisher(bus *Bus) *TransitionPublisher {
	return &TransitionPublisher{bus: bus}
}

// VideoTransitioned implements catalog.EventSink.
func (p *TransitionPublisher) VideoTransitioned(ctx context.Context, evt catalog.TransitionEvent) {
	env, err := NewVideoTransitioned(evt, logging.RunIDFromContext(ctx))
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("video_id", evt.VideoID).Msg("build transition event")
		return
	}
	if err := p.bus.Publish(ctx, env); err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("video_id", evt.VideoID).
			Str("event_id", env.EventID).
			Msg("publish transition event")
	}
}

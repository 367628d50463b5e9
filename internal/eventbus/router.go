// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package eventbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
)

// EventStore persists consumed events. The warehouse implements this over
// its pipeline_events table.
type EventStore interface {
	RecordEvent(ctx context.Context, eventID, eventType, videoID, runID string, payload []byte, occurredAt time.Time) error
}

// Broadcaster pushes consumed events to live listeners. Optional.
type Broadcaster interface {
	Broadcast(eventType string, payload []byte)
}

// Consumer drains pipeline topics into the event store and, when wired, a
// live broadcaster. Redeliveries are safe: event IDs key the store writes.
type Consumer struct {
	router *message.Router
}

// NewConsumer builds the consumer router over the bus subscriber. Poisoned
// messages that exhaust their retries land on the configured poison topic
// instead of blocking the stream.
func NewConsumer(cfg config.NATSConfig, bus *Bus, store EventStore, bc Broadcaster) (*Consumer, error) {
	logger := newBusLogger()

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      cfg.RouterRetryCount,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Logger:          logger,
	}.Middleware)

	if cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueue(bus.Publisher(), cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue: %w", err)
		}
		router.AddMiddleware(poison)
	}

	c := &Consumer{router: router}
	for _, topic := range Topics() {
		name := "store-" + strings.ReplaceAll(topic, ".", "-")
		router.AddNoPublisherHandler(name, topic, bus.Subscriber(), func(msg *message.Message) error {
			return consume(msg, store, bc)
		})
	}
	return c, nil
}

func consume(msg *message.Message, store EventStore, bc Broadcaster) error {
	ctx := msg.Context()

	env, err := UnmarshalEnvelope(msg.Payload)
	if err != nil {
		// Malformed payloads never become valid; let the poison queue
		// take them after retries run out.
		metrics.RecordEventConsumed("unknown", "malformed")
		return err
	}

	topic := Topic(env.EventType)
	if err := store.RecordEvent(ctx, env.EventID, env.EventType, env.VideoID, env.RunID, env.Payload, env.OccurredAt); err != nil {
		metrics.RecordEventConsumed(topic, "error")
		return err
	}
	if bc != nil {
		bc.Broadcast(env.EventType, msg.Payload)
	}

	metrics.RecordEventConsumed(topic, "ok")
	logging.Ctx(ctx).Debug().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Msg("event stored")
	return nil
}

// Run starts the router and blocks until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running returns a channel closed once all handlers are started.
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

// Close stops the router.
func (c *Consumer) Close() error {
	return c.router.Close()
}

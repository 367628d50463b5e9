// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
)

// streamName is the JetStream stream that captures every pipeline subject.
const streamName = "SCRIPTORIUM_EVENTS"

// Bus publishes and subscribes pipeline events. The default transport is an
// in-process channel; with NATS enabled it becomes a durable JetStream bus,
// optionally backed by an embedded server for single-binary deployments.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	ns     *server.Server
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool

	// seqs holds the next per-run sequence number; entries are dropped
	// once the run's completion event has been stamped.
	seqMu sync.Mutex
	seqs  map[string]uint64
}

// New builds the event bus for the given configuration.
func New(cfg config.NATSConfig) (*Bus, error) {
	logger := newBusLogger()

	if !cfg.Enabled {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger)
		return &Bus{pub: ch, sub: ch, logger: logger}, nil
	}

	b := &Bus{logger: logger}
	url := cfg.URL
	if cfg.EmbeddedServer {
		ns, err := startEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		b.ns = ns
		url = ns.ClientURL()
	}

	if err := ensureStream(url, cfg); err != nil {
		b.shutdownServer()
		return nil, err
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("event bus disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("event bus reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		b.shutdownServer()
		return nil, fmt.Errorf("create bus publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:            url,
		AckWaitTimeout: 30 * time.Second,
		CloseTimeout:   cfg.CloseTimeout,
		NatsOptions:    natsOpts,
		Unmarshaler:    &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			AckAsync:      false,
			DurablePrefix: cfg.DurableName,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(streamName),
				natsgo.MaxDeliver(cfg.RouterRetryCount + 1),
				natsgo.AckWait(30 * time.Second),
				natsgo.DeliverNew(),
			},
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		b.shutdownServer()
		return nil, fmt.Errorf("create bus subscriber: %w", err)
	}

	b.pub = pub
	b.sub = sub
	return b, nil
}

// stampSeq assigns the envelope a monotonically increasing sequence number
// within its run, so consumers can order events without wall clocks. The
// run's counter is released when its completion event goes out.
func (b *Bus) stampSeq(env *Envelope) {
	if env.RunID == "" || env.Seq != 0 {
		return
	}
	b.seqMu.Lock()
	defer b.seqMu.Unlock()
	if b.seqs == nil {
		b.seqs = make(map[string]uint64)
	}
	b.seqs[env.RunID]++
	env.Seq = b.seqs[env.RunID]
	if env.EventType == TypeRunCompleted {
		delete(b.seqs, env.RunID)
	}
}

// startEmbeddedServer runs a JetStream-enabled NATS server inside the
// process, on a random port so parallel instances never collide.
func startEmbeddedServer(cfg config.NATSConfig) (*server.Server, error) {
	opts := &server.Options{
		ServerName: "scriptorium-events",
		Port:       server.RANDOM_PORT,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		NoLog:      true,
		MaxPayload: 8 * 1024 * 1024,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}
	logging.Info().Str("url", ns.ClientURL()).Msg("embedded nats server started")
	return ns, nil
}

// ensureStream creates or updates the pipeline stream. Idempotent; the
// publisher and subscriber bind to it rather than auto-provisioning.
func ensureStream(url string, cfg config.NATSConfig) error {
	nc, err := natsgo.Connect(url)
	if err != nil {
		return fmt.Errorf("connect for stream init: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Subjects:    []string{TopicPrefix + ">"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Duration(cfg.StreamRetentionDays) * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  2 * time.Minute,
		AllowDirect: true,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", streamName, err)
	}
	return nil
}

// Publish serializes the envelope and sends it on its type's topic. The
// event ID doubles as the message UUID for broker-side deduplication.
func (b *Bus) Publish(ctx context.Context, env *Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.Unlock()

	b.stampSeq(env)

	data, err := env.Marshal()
	if err != nil {
		return err
	}

	msg := message.NewMessage(env.EventID, data)
	msg.Metadata.Set("event_type", env.EventType)
	if env.VideoID != "" {
		msg.Metadata.Set("video_id", env.VideoID)
	}
	if env.RunID != "" {
		msg.Metadata.Set("run_id", env.RunID)
	}
	msg.SetContext(ctx)

	topic := Topic(env.EventType)
	if err := b.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.RecordEventPublished(topic)
	return nil
}

// Subscriber exposes the underlying subscriber for the consumer router.
func (b *Bus) Subscriber() message.Subscriber { return b.sub }

// Publisher exposes the underlying publisher, used by the poison queue.
func (b *Bus) Publisher() message.Publisher { return b.pub }

// Close shuts down the transport and, when embedded, the NATS server.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	if err := b.pub.Close(); err != nil {
		firstErr = err
	}
	// gochannel is one object for both sides; closing twice is redundant.
	if b.sub != nil && any(b.sub) != any(b.pub) {
		if err := b.sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.shutdownServer()
	return firstErr
}

func (b *Bus) shutdownServer() {
	if b.ns == nil {
		return
	}
	b.ns.Shutdown()
	b.ns.WaitForShutdown()
	b.ns = nil
}

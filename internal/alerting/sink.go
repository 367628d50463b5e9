// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package alerting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	goslack "github.com/slack-go/slack"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/store"
)

// Outcome is the result of an Emit call.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeThrottled Outcome = "throttled"
	OutcomeFailed    Outcome = "failed"
)

// DefaultThrottleWindow is the rolling window for per-type deduplication.
const DefaultThrottleWindow = time.Hour

const throttleKeyPrefix = "throttle:"

// ErrEmptyAlertType is returned when the alert type is missing.
var ErrEmptyAlertType = errors.New("alert type is required")

// Messenger delivers a formatted alert. Implemented by SlackClient.
type Messenger interface {
	Post(ctx context.Context, fallback string, blocks ...goslack.Block) error
}

// Config controls the alert sink.
type Config struct {
	// ThrottleWindow is the rolling deduplication window per alert type.
	ThrottleWindow time.Duration

	// Messenger delivers alerts. Nil means log-only delivery.
	Messenger Messenger
}

// Sink is the persistent, throttled alert emitter.
type Sink struct {
	store     *store.Store
	messenger Messenger
	window    time.Duration

	// now is swapped by tests to pin the clock.
	now func() time.Time
}

// New creates a Sink on top of the given document store.
func New(s *store.Store, cfg Config) *Sink {
	if cfg.ThrottleWindow == 0 {
		cfg.ThrottleWindow = DefaultThrottleWindow
	}
	return &Sink{
		store:     s,
		messenger: cfg.Messenger,
		window:    cfg.ThrottleWindow,
		now:       time.Now,
	}
}

func throttleKey(alertType string) string {
	return throttleKeyPrefix + alertType
}

// Emit sends one alert of the given type unless another was sent inside
// the rolling throttle window. Throttled calls mutate nothing. Delivery
// failures release the throttle slot so the next emission can retry.
func (s *Sink) Emit(ctx context.Context, alertType, severity string, payload map[string]any) (Outcome, error) {
	if alertType == "" {
		return OutcomeFailed, ErrEmptyAlertType
	}

	now := s.now().UTC()
	var prev models.ThrottleRecord
	var throttled bool

	err := s.store.Update(ctx, "alert_throttle", func(txn *badger.Txn) error {
		throttled = false

		var rec models.ThrottleRecord
		err := store.GetJSON(txn, throttleKey(alertType), &rec)
		if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
			return err
		}

		if !rec.LastSent.IsZero() && now.Sub(rec.LastSent) < s.window {
			throttled = true
			return nil
		}

		prev = rec
		rec.AlertType = alertType
		rec.LastSent = now
		rec.Count++
		return store.SetJSON(txn, throttleKey(alertType), rec)
	})
	if err != nil {
		return OutcomeFailed, err
	}

	if throttled {
		metrics.RecordAlert(alertType, string(OutcomeThrottled))
		logging.Ctx(ctx).Debug().
			Str("alert_type", alertType).
			Dur("window", s.window).
			Msg("Alert throttled")
		return OutcomeThrottled, nil
	}

	if err := s.deliver(ctx, alertType, severity, payload, now); err != nil {
		s.releaseSlot(ctx, alertType, prev)
		metrics.RecordAlert(alertType, string(OutcomeFailed))
		return OutcomeFailed, fmt.Errorf("deliver alert %s: %w", alertType, err)
	}

	metrics.RecordAlert(alertType, string(OutcomeSent))
	return OutcomeSent, nil
}

// Notify adapts Emit for callers that only care about delivery failure.
// Throttled emissions are not failures.
func (s *Sink) Notify(ctx context.Context, alertType, severity string, payload map[string]any) error {
	_, err := s.Emit(ctx, alertType, severity, payload)
	return err
}

func (s *Sink) deliver(ctx context.Context, alertType, severity string, payload map[string]any, at time.Time) error {
	event := logging.Ctx(ctx).Info().
		Str("alert_type", alertType).
		Str("severity", severity)
	for k, v := range payload {
		event = event.Interface(k, v)
	}
	event.Msg("Operational alert")

	if s.messenger == nil {
		return nil
	}

	fallback, blocks := formatAlert(alertType, severity, payload, at)
	return s.messenger.Post(ctx, fallback, blocks...)
}

// releaseSlot restores the previous throttle record after a failed
// delivery. Best effort: a concurrent successful emission wins.
func (s *Sink) releaseSlot(ctx context.Context, alertType string, prev models.ThrottleRecord) {
	err := s.store.Update(ctx, "alert_throttle_release", func(txn *badger.Txn) error {
		if prev.LastSent.IsZero() {
			return txn.Delete([]byte(throttleKey(alertType)))
		}
		return store.SetJSON(txn, throttleKey(alertType), prev)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("alert_type", alertType).
			Msg("Failed to release alert throttle slot")
	}
}

// LastSent returns the throttle record for an alert type. Zero record if
// nothing was ever sent.
func (s *Sink) LastSent(ctx context.Context, alertType string) (models.ThrottleRecord, error) {
	var rec models.ThrottleRecord
	err := s.store.Get(ctx, throttleKey(alertType), &rec)
	if errors.Is(err, store.ErrKeyNotFound) {
		return models.ThrottleRecord{AlertType: alertType}, nil
	}
	if err != nil {
		return models.ThrottleRecord{}, err
	}
	return rec, nil
}

func severityEmoji(severity string) string {
	switch severity {
	case "critical":
		return ":rotating_light:"
	case "warning":
		return ":warning:"
	case "info":
		return ":information_source:"
	default:
		return ":bell:"
	}
}

// formatAlert builds the Slack block layout: header, payload fields sorted
// by key for deterministic output, and a context footer.
func formatAlert(alertType, severity string, payload map[string]any, at time.Time) (string, []goslack.Block) {
	fallback := fmt.Sprintf("[%s] %s", severity, alertType)

	header := goslack.NewHeaderBlock(goslack.NewTextBlockObject(
		goslack.PlainTextType,
		fmt.Sprintf("%s %s", severityEmoji(severity), alertType),
		true, false,
	))

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var body strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&body, "*%s:* %v\n", k, payload[k])
	}
	if body.Len() == 0 {
		body.WriteString("_no details_")
	}

	section := goslack.NewSectionBlock(goslack.NewTextBlockObject(
		goslack.MarkdownType, body.String(), false, false,
	), nil, nil)

	footer := goslack.NewContextBlock("", goslack.NewTextBlockObject(
		goslack.MarkdownType,
		fmt.Sprintf("Scriptorium | severity `%s` | %s", severity, at.Format(time.RFC3339)),
		false, false,
	))

	return fallback, []goslack.Block{header, goslack.NewDividerBlock(), section, footer}
}

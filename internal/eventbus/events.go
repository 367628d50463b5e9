// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package eventbus

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/models"
)

// SchemaVersion is the current envelope schema. Consumers reject envelopes
// from a newer schema rather than misread them.
const SchemaVersion = 1

// Event types carried on the bus.
const (
	TypeRunStarted        = "run.started"
	TypeVideoTransitioned = "video.transitioned"
	TypeRunCompleted      = "run.completed"
	TypeJobDeadLettered   = "job.dead_lettered"
)

// TopicPrefix namespaces every pipeline subject so a single JetStream
// stream bound to "pipeline.>" captures them all.
const TopicPrefix = "pipeline."

// Topic returns the bus topic for an event type.
func Topic(eventType string) string {
	return TopicPrefix + eventType
}

// Topics lists every subject the consumer router subscribes to.
func Topics() []string {
	return []string{
		Topic(TypeRunStarted),
		Topic(TypeVideoTransitioned),
		Topic(TypeRunCompleted),
		Topic(TypeJobDeadLettered),
	}
}

// Envelope is the wire format for every pipeline event. The payload shape
// depends on EventType.
type Envelope struct {
	SchemaVersion int             `json:"schema_version"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	VideoID       string          `json:"video_id,omitempty"`
	RunID         string          `json:"run_id,omitempty"`
	Seq           uint64          `json:"seq,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// VideoTransitionedPayload records a committed status change.
type VideoTransitionedPayload struct {
	VideoID    string             `json:"video_id"`
	From       models.VideoStatus `json:"from"`
	To         models.VideoStatus `json:"to"`
	RetryCount int                `json:"retry_count"`
}

// JobDeadLetteredPayload records a job parked in the dead letter queue.
type JobDeadLetteredPayload struct {
	JobID     string          `json:"job_id"`
	JobType   string          `json:"job_type"`
	VideoID   string          `json:"video_id,omitempty"`
	Severity  models.Severity `json:"severity"`
	ErrorType string          `json:"error_type"`
}

func newEnvelope(eventType, videoID, runID string, occurredAt time.Time, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return &Envelope{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		EventType:     eventType,
		VideoID:       videoID,
		RunID:         runID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       raw,
	}, nil
}

// NewRunStarted wraps a persisted run plan for publishing.
func NewRunStarted(plan models.RunPlan) (*Envelope, error) {
	return newEnvelope(TypeRunStarted, "", plan.RunID, plan.CreatedAt, plan)
}

// NewVideoTransitioned wraps a catalog transition for publishing.
func NewVideoTransitioned(evt catalog.TransitionEvent, runID string) (*Envelope, error) {
	return newEnvelope(TypeVideoTransitioned, evt.VideoID, runID, evt.At, VideoTransitionedPayload{
		VideoID:    evt.VideoID,
		From:       evt.From,
		To:         evt.To,
		RetryCount: evt.RetryCount,
	})
}

// NewRunCompleted wraps a finished run summary for publishing.
func NewRunCompleted(summary models.RunSummary) (*Envelope, error) {
	return newEnvelope(TypeRunCompleted, "", summary.RunID, summary.CompletedAt, summary)
}

// NewJobDeadLettered wraps a dead letter entry for publishing.
func NewJobDeadLettered(entry *models.DLQEntry, runID string) (*Envelope, error) {
	return newEnvelope(TypeJobDeadLettered, entry.VideoID, runID, entry.CreatedAt, JobDeadLetteredPayload{
		JobID:     entry.JobID,
		JobType:   entry.JobType,
		VideoID:   entry.VideoID,
		Severity:  entry.Severity,
		ErrorType: entry.Failure.ErrorType,
	})
}

// Marshal serializes the envelope for the wire.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope parses and validates a wire envelope.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("envelope schema %d is newer than supported %d", env.SchemaVersion, SchemaVersion)
	}
	if env.EventID == "" || env.EventType == "" {
		return nil, fmt.Errorf("envelope missing event_id or event_type")
	}
	return &env, nil
}

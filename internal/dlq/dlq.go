// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package dlq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
	"github.com/tomtom215/scriptorium/internal/models"
	"github.com/tomtom215/scriptorium/internal/store"
)

const keyPrefix = "dlq:"

var (
	// ErrEntryNotFound is returned when no DLQ entry exists for the job ID.
	ErrEntryNotFound = errors.New("dlq entry not found")

	// ErrAlreadyReplayed is returned when a replay targets an entry that
	// was already replayed.
	ErrAlreadyReplayed = errors.New("dlq entry already replayed")
)

// paidJobTypes are stages whose retries burn money on external APIs.
// Exhausting retries there is triaged above ordinary transient failures.
var paidJobTypes = map[string]bool{
	"transcribe": true,
	"summarize":  true,
	"index":      true,
}

// Queue is the terminal-failure archive. Entries keep the original job
// inputs verbatim so an operator replay can push the exact same work back
// through the dispatcher.
type Queue struct {
	s   *store.Store
	now func() time.Time
}

// New builds a Queue on the shared document store.
func New(s *store.Store) *Queue {
	return &Queue{s: s, now: time.Now}
}

// DeriveSeverity grades a failure for triage:
//
//	critical: auth failures, poison payloads, and any other terminal kind
//	high:     unsupported media, or retries exhausted against a paid API
//	medium:   input validation failures
//	low:      everything else (ordinary transient exhaustion)
func DeriveSeverity(jobType string, kind models.ErrorKind, errorType string) models.Severity {
	switch errorType {
	case models.ErrTypeAuth, models.ErrTypePoisonPayload:
		return models.SeverityCritical
	case models.ErrTypeUnsupportedMedia:
		return models.SeverityHigh
	case models.ErrTypeInvalidInput:
		return models.SeverityMedium
	}
	if kind == models.ErrKindTerminal {
		return models.SeverityCritical
	}
	if paidJobTypes[jobType] {
		return models.SeverityHigh
	}
	return models.SeverityLow
}

// NewEntry builds a DLQ entry from a classified failure. The dispatcher
// uses this when retries are exhausted or the failure is terminal.
func NewEntry(jobType, videoID string, ce *models.ClassifiedError, retryCount int, inputs map[string]string) *models.DLQEntry {
	severity := DeriveSeverity(jobType, ce.Kind, ce.ErrorType)
	return &models.DLQEntry{
		JobID:   uuid.NewString(),
		JobType: jobType,
		VideoID: videoID,
		Failure: models.Failure{
			ErrorType:  ce.ErrorType,
			Message:    ce.Error(),
			RetryCount: retryCount,
		},
		OriginalInputs:   inputs,
		Severity:         severity,
		RecoveryPriority: severity.RecoveryPriority(),
	}
}

// Enqueue archives a failed job. JobID, severity, recovery priority, and
// CreatedAt are filled when absent. Enqueueing the same JobID twice keeps
// the first record so a crashed dispatcher can safely re-dead-letter.
func (q *Queue) Enqueue(ctx context.Context, entry *models.DLQEntry) error {
	if entry.JobType == "" {
		return errors.New("dlq: missing job_type")
	}
	if entry.JobID == "" {
		entry.JobID = uuid.NewString()
	}
	if entry.Severity == "" {
		entry.Severity = DeriveSeverity(entry.JobType, models.ErrorKind(""), entry.Failure.ErrorType)
	}
	entry.RecoveryPriority = entry.Severity.RecoveryPriority()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = q.now().UTC()
	}

	key := keyPrefix + entry.JobID
	err := q.s.Update(ctx, "dlq_enqueue", func(txn *badger.Txn) error {
		var existing models.DLQEntry
		switch err := store.GetJSON(txn, key, &existing); {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrKeyNotFound):
			return store.SetJSON(txn, key, entry)
		default:
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("dlq enqueue %s: %w", entry.JobID, err)
	}

	metrics.RecordDLQEntry(entry.JobType, string(entry.Severity))
	q.refreshDepth(ctx)

	logging.Warn().
		Str("job_id", entry.JobID).
		Str("job_type", entry.JobType).
		Str("video_id", entry.VideoID).
		Str("severity", string(entry.Severity)).
		Str("error_type", entry.Failure.ErrorType).
		Msg("job dead-lettered")
	return nil
}

// Get returns the entry for jobID.
func (q *Queue) Get(ctx context.Context, jobID string) (*models.DLQEntry, error) {
	var entry models.DLQEntry
	err := q.s.Get(ctx, keyPrefix+jobID, &entry)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// QueryFilter narrows a DLQ listing. Zero values match everything.
type QueryFilter struct {
	Severity        models.Severity
	JobType         string
	VideoID         string
	Since           time.Time
	IncludeReplayed bool
	Limit           int
}

// Query lists entries matching the filter, ordered by recovery priority
// (highest first) then age (oldest first).
func (q *Queue) Query(ctx context.Context, f QueryFilter) ([]models.DLQEntry, error) {
	var entries []models.DLQEntry
	err := q.s.List(ctx, keyPrefix, func(_ string, val []byte) error {
		var entry models.DLQEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			return fmt.Errorf("decode dlq entry: %w", err)
		}
		if !f.matches(&entry) {
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RecoveryPriority != entries[j].RecoveryPriority {
			return entries[i].RecoveryPriority > entries[j].RecoveryPriority
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[:f.Limit]
	}
	return entries, nil
}

func (f *QueryFilter) matches(entry *models.DLQEntry) bool {
	if f.Severity != "" && entry.Severity != f.Severity {
		return false
	}
	if f.JobType != "" && entry.JobType != f.JobType {
		return false
	}
	if f.VideoID != "" && entry.VideoID != f.VideoID {
		return false
	}
	if !f.Since.IsZero() && entry.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.IncludeReplayed && entry.ReplayedAt != nil {
		return false
	}
	return true
}

// MarkReplayed stamps the entry as replayed and returns it with its
// original inputs, ready for re-dispatch. Replaying twice fails so a
// replay cannot double-submit work.
func (q *Queue) MarkReplayed(ctx context.Context, jobID string) (*models.DLQEntry, error) {
	key := keyPrefix + jobID
	var entry models.DLQEntry

	err := q.s.Update(ctx, "dlq_replay", func(txn *badger.Txn) error {
		switch err := store.GetJSON(txn, key, &entry); {
		case errors.Is(err, store.ErrKeyNotFound):
			return fmt.Errorf("%w: %s", ErrEntryNotFound, jobID)
		case err != nil:
			return err
		}
		if entry.ReplayedAt != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyReplayed, jobID)
		}
		now := q.now().UTC()
		entry.ReplayedAt = &now
		return store.SetJSON(txn, key, &entry)
	})
	if err != nil {
		metrics.RecordDLQReplay(false)
		return nil, err
	}

	metrics.RecordDLQReplay(true)
	q.refreshDepth(ctx)
	logging.Info().
		Str("job_id", jobID).
		Str("job_type", entry.JobType).
		Str("video_id", entry.VideoID).
		Msg("dlq entry replayed")
	return &entry, nil
}

// Depth counts entries awaiting replay.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	depth := 0
	err := q.s.List(ctx, keyPrefix, func(_ string, val []byte) error {
		var entry models.DLQEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			return fmt.Errorf("decode dlq entry: %w", err)
		}
		if entry.ReplayedAt == nil {
			depth++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.DLQDepth.Set(float64(depth))
	return depth, nil
}

func (q *Queue) refreshDepth(ctx context.Context) {
	if _, err := q.Depth(ctx); err != nil {
		logging.Debug().Err(err).Msg("dlq depth refresh failed")
	}
}

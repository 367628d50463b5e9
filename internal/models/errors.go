// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for dispatch policy. The dispatcher's
// decision table keys off the kind; the stable ErrorType tag is carried
// into DLQ entries and alerts.
type ErrorKind string

const (
	// ErrKindTransient covers timeouts, 5xx responses, rate limits, and
	// storage contention. Retried with backoff, then dead-lettered.
	ErrKindTransient ErrorKind = "transient"

	// ErrKindTerminal covers auth failures, invalid input, unsupported
	// media, and poison payloads. Dead-lettered immediately.
	ErrKindTerminal ErrorKind = "terminal"

	// ErrKindBudgetExceeded means the daily cost cap is hit. Rejected and
	// alerted, never dead-lettered.
	ErrKindBudgetExceeded ErrorKind = "budget_exceeded"

	// ErrKindQuotaExceeded means a service quota is exhausted. Retried
	// after the reset window.
	ErrKindQuotaExceeded ErrorKind = "quota_exceeded"

	// ErrKindPartial means one of multiple sinks or sources failed while
	// others succeeded.
	ErrKindPartial ErrorKind = "partial"

	// ErrKindPolicyViolation marks retrieval results rejected by the
	// policy enforcer.
	ErrKindPolicyViolation ErrorKind = "policy_violation"
)

// Retryable reports whether the dispatcher may retry a failure of this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindTransient, ErrKindQuotaExceeded, ErrKindPartial:
		return true
	}
	return false
}

// Stable error type tags carried into DLQ entries, alerts, and metrics.
const (
	ErrTypeTimeout            = "timeout"
	ErrTypeRateLimit          = "rate_limit"
	ErrTypeServiceUnavailable = "service_unavailable"
	ErrTypeStorageUnavailable = "storage_unavailable"
	ErrTypeNetwork            = "network"
	ErrTypeAuth               = "auth"
	ErrTypeInvalidInput       = "invalid_input"
	ErrTypeUnsupportedMedia   = "unsupported_media"
	ErrTypePoisonPayload      = "poison_payload"
	ErrTypeNotFound           = "not_found"
	ErrTypeBudgetExceeded     = "budget_exceeded"
	ErrTypeQuotaExceeded      = "quota_exceeded"
	ErrTypeSinkUnavailable    = "sink_unavailable"
	ErrTypeInternal           = "internal"
)

// ClassifiedError is the failure envelope workers return. It wraps the
// underlying cause so errors.Is/As keep working through classification.
type ClassifiedError struct {
	Kind      ErrorKind
	ErrorType string
	Err       error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.ErrorType, e.Kind)
	}
	return fmt.Sprintf("%s (%s): %v", e.ErrorType, e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a retryable transient failure.
func NewTransient(errorType string, err error) *ClassifiedError {
	return &ClassifiedError{Kind: ErrKindTransient, ErrorType: errorType, Err: err}
}

// NewTerminal wraps err as a non-retryable terminal failure.
func NewTerminal(errorType string, err error) *ClassifiedError {
	return &ClassifiedError{Kind: ErrKindTerminal, ErrorType: errorType, Err: err}
}

// NewBudgetExceeded wraps err as a budget rejection.
func NewBudgetExceeded(err error) *ClassifiedError {
	return &ClassifiedError{Kind: ErrKindBudgetExceeded, ErrorType: ErrTypeBudgetExceeded, Err: err}
}

// NewQuotaExceeded wraps err as a quota exhaustion.
func NewQuotaExceeded(err error) *ClassifiedError {
	return &ClassifiedError{Kind: ErrKindQuotaExceeded, ErrorType: ErrTypeQuotaExceeded, Err: err}
}

// NewPartial wraps err as a partial failure.
func NewPartial(errorType string, err error) *ClassifiedError {
	return &ClassifiedError{Kind: ErrKindPartial, ErrorType: errorType, Err: err}
}

// Classify extracts the ClassifiedError from err's chain. Unclassified
// errors default to transient/internal so nothing fails permanently
// without an explicit terminal classification.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return &ClassifiedError{Kind: ErrKindTransient, ErrorType: ErrTypeInternal, Err: err}
}

// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package models

import "time"

// Severity grades a dead-lettered failure for operator triage.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// recoveryPriority orders severities for replay triage; higher first.
var recoveryPriority = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// RecoveryPriority returns the numeric triage priority for the severity.
func (s Severity) RecoveryPriority() int {
	return recoveryPriority[s]
}

// Failure captures the classified error that dead-lettered a job.
type Failure struct {
	ErrorType  string `json:"error_type"`
	Message    string `json:"message"`
	RetryCount int    `json:"retry_count"`
}

// DLQEntry is the terminal-failure archive record. Original inputs are kept
// verbatim so the job can be replayed through the dispatcher.
type DLQEntry struct {
	JobID            string            `json:"job_id"`
	JobType          string            `json:"job_type"`
	VideoID          string            `json:"video_id,omitempty"`
	Failure          Failure           `json:"failure"`
	OriginalInputs   map[string]string `json:"original_inputs,omitempty"`
	Severity         Severity          `json:"severity"`
	RecoveryPriority int               `json:"recovery_priority"`
	CreatedAt        time.Time         `json:"created_at"`
	ReplayedAt       *time.Time        `json:"replayed_at,omitempty"`
}

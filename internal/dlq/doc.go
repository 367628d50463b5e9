// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package dlq archives terminally failed pipeline jobs for operator triage
// and replay. Entries carry the original job inputs verbatim; a replay
// marks the entry, resets the video's lifecycle, and hands the inputs back
// to the dispatcher. Severity grading orders the operator's queue.
package dlq

// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package policy enforces content rules on retrieval results: a channel
// allow-list, a maximum content age, and sensitive-pattern detection with
// filter, redact, or audit-only handling. Every violation is recorded for
// audit regardless of mode.
package policy

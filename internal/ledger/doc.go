// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package ledger tracks per-day spend and per-service quota use and gates
// job dispatch.
//
// The accounting day rolls over at local midnight in the configured
// timezone (Europe/Amsterdam by default). Check and Record are atomic
// against the per-day record: each runs under a per-day key mutex on top of
// a store transaction. Crossing 80% of the daily transcription budget emits
// one warning alert for the day; crossing 95% emits one distinct critical
// alert. Both marks live inside the cost aggregate so the at-most-once
// guarantee survives restarts.
package ledger

// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package store wraps BadgerDB as the transactional document store backing
// the video catalog, budget ledger, alert throttle records, and the
// dead-letter queue.
//
// Values are stored as JSON under string keys with per-record-type prefixes
// owned by the calling packages. Read-modify-write sequences run inside
// Update transactions; Badger's SSI conflict detection aborts concurrent
// writers and Update retries them with exponential backoff (base 100ms,
// doubling, capped at 1s, at most 5 attempts) before surfacing
// ErrStorageUnavailable.
package store

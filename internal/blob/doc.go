// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package blob stores raw pipeline artifacts on the local filesystem under
// stable, self-describing filenames. The catalog records only refs; the
// bytes live here. All writes are atomic so indexing replays can safely
// re-emit artifacts.
package blob

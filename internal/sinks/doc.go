// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package sinks implements the three retrieval projections over DuckDB:
// the semantic sink (vector similarity over embeddings), the keyword sink
// (BM25 full-text search), and the structured warehouse (metadata filters,
// pipeline events, and audit trails).
//
// All sinks are idempotent at the chunk level: a write is keyed by chunk_id
// and skipped when the stored content_sha256 already matches, so replays
// never duplicate rows. Extensions (vss, fts) are loaded with graceful
// degradation; a sink that cannot load its extension still answers queries
// through a slower core-SQL path rather than failing the whole engine.
package sinks

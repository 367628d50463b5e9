// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package retrieval answers queries across the semantic, keyword, and
// structured sinks. The router picks sources from query shape; the engine
// fans out with per-source deadlines and degrades on partial failure; the
// fuser merges ranked lists with reciprocal rank fusion, never mixing raw
// scores across sources.
package retrieval

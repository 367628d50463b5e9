// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package audit persists the retrieval audit trail: one row per retrieval
// request (query text, routed sources, result count, policy action) and one
// row per policy violation. Rows live in the analytics warehouse so they
// can be joined with chunk and event data.
package audit

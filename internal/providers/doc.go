// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package providers holds the external service clients: channel listing,
// operator sheet backfill, speech-to-text, summarization, and embeddings.
// Every client classifies failures into the shared error taxonomy so the
// dispatcher can apply its retry policy uniformly, and the paid APIs sit
// behind circuit breakers so a degraded provider cannot stall a whole run.
package providers

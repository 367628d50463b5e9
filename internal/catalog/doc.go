// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package catalog is the metadata store: the single owner of Video,
// Transcript, and Summary records and of the video status state machine.
//
// Workers propose transitions but commit only through this package. All
// writes run inside store transactions so concurrent discovery of the same
// video (channel scrape racing sheet backfill) upserts idempotently and
// never downgrades status. Committed transitions are emitted to an optional
// event sink in per-video order.
package catalog

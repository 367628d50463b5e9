// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package pipeline orchestrates the daily ingestion pass. The planner
// sizes a run from configuration and ledger headroom; the scraper lands
// discoveries; the dispatcher executes the transcribe, summarize, and
// index stages under per-stage concurrency caps, bounded retries with
// exponential backoff, and a dead-letter policy for everything that
// exhausts them. The scheduler fires one run per local day, and the
// replayer re-dispatches dead-lettered jobs on operator demand.
package pipeline

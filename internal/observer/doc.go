// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package observer finalizes pipeline runs. It scores run health from the
// success rate, dead-letter pressure, and quota headroom, records run
// metrics, publishes the run.completed event, and alerts the operator when
// a run degrades.
package observer

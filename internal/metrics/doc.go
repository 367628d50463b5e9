// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package metrics provides Prometheus instrumentation for the ingestion
// pipeline and retrieval engine.
//
// All collectors are registered with the default registry via promauto at
// package initialization and exposed through the /metrics endpoint. Callers
// use the Record* helpers rather than touching collectors directly so label
// cardinality stays controlled in one place.
package metrics

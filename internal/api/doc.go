// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package api serves the operator HTTP surface: hybrid retrieval with
// policy enforcement, dead-letter inspection and replay, out-of-schedule
// run triggers, pipeline status, health probes, Prometheus metrics, and
// the websocket event feed.
//
// Every endpoint answers with the APIResponse envelope. Authentication is
// configurable: none for trusted networks, or token mode where clients
// present the static operator token (bcrypt-checked) or a short-lived JWT
// obtained from the token-exchange endpoint.
package api

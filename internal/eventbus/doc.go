// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package eventbus carries pipeline events between the ingestion stages and
// their consumers. Envelopes are versioned JSON; transport is an in-process
// channel by default and NATS JetStream when configured, with an optional
// embedded server for single-binary deployments. The consumer router drains
// every topic into the warehouse event log, retrying transient failures and
// parking poisoned messages on a dedicated topic.
package eventbus

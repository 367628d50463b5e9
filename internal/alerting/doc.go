// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package alerting is the throttled operational alert sink.
//
// Emit delivers at most one alert per alert type per rolling hour; calls
// inside the window return Throttled without side effects. Throttle state
// is persisted in the document store so the guarantee survives restarts.
// Delivery goes to Slack through a thin slack-go wrapper; with no messenger
// configured the sink degrades to structured log output.
package alerting

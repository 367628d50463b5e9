// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package ws pushes pipeline events to browser clients over websockets.
// The hub consumes frames from the event bus consumer and fans them out;
// clients are listen-only.
package ws

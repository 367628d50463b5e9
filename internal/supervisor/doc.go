// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package supervisor runs the long-lived services under a suture v4 tree.
//
// Three child supervisors isolate failures by layer: the pipeline scheduler,
// the messaging services (event consumer, websocket hub), and the HTTP
// server. A crash in one layer restarts only that layer's services; restart
// storms are damped by suture's failure threshold and backoff.
//
// Services implement suture.Service, which is just Serve(ctx) error that
// blocks until the context is canceled. NewService adapts closures for
// components whose entry point has a different name.
package supervisor

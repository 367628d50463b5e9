// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package config resolves the application configuration once at startup.
//
// Sources are layered with koanf v2: struct defaults, then an optional YAML
// file (config.yaml, /etc/scriptorium/config.yaml, or CONFIG_PATH), then
// environment variables mapped through an explicit allow-list. Comma-
// separated env values populate slice fields.
//
// The resolved Config is validated before use; a missing required
// credential for an enabled feature aborts startup with exit code 2.
package config

// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package validation wraps go-playground/validator v10 with a singleton
// instance and error translation into the API error envelope format.
//
// The validator is shared between startup configuration validation (where a
// failure maps to exit code 2) and API request validation (where a failure
// maps to a 400 VALIDATION_ERROR response).
package validation

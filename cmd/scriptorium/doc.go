// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Command scriptorium is the operator entry point.
//
// Subcommands:
//
//	serve       run the scheduler, event consumer, and HTTP API under supervision
//	run-daily   execute one pipeline run and print its summary
//	query-dlq   list dead-lettered jobs
//	replay-dlq  replay dead-lettered jobs by ID or severity
//	retrieve    run a hybrid retrieval query from the terminal
//
// Exit codes: 0 success, 1 runtime failure, 2 configuration error,
// 3 dependency unavailable.
//
// @title Scriptorium API
// @version 1.0
// @description Video content ingestion pipeline and hybrid retrieval engine.
// @description
// @description Ingests channel uploads through scrape, transcribe, summarize,
// @description and index stages, then serves hybrid retrieval over semantic,
// @description keyword, and structured sinks with reciprocal rank fusion.
// @description
// @description Authenticated endpoints accept either the static operator token
// @description or a JWT obtained from POST /api/v1/auth/token.
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/scriptorium/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token: the static operator token or a JWT from /api/v1/auth/token.
//
// @tag.name Core
// @tag.description Health and system status
//
// @tag.name Retrieval
// @tag.description Hybrid retrieval over the indexed corpus
//
// @tag.name Pipeline
// @tag.description Pipeline runs, status, and dead-letter operations
//
// @tag.name Auth
// @tag.description Token exchange
package main

// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

// Package chunk windows transcript text into token-bounded, overlapping
// chunks for indexing. Tokenization uses tiktoken so counts match what the
// embedding and summarization endpoints bill for. Chunking is deterministic:
// identical input text always produces identical chunk IDs, texts, and
// content digests.
package chunk

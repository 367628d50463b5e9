// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package main

import (
	"os"

	_ "github.com/tomtom215/scriptorium/docs" // Import generated swagger docs
)

func main() {
	os.Exit(run())
}

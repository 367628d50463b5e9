// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package pipeline

import (
	"math/rand"
	"time"
)

const (
	backoffBase   = time.Minute
	backoffCap    = 30 * time.Minute
	backoffJitter = 0.10
)

// backoffDelay returns the wait before retry attempt n (0-based): base
// doubling per attempt, capped, with +/-10% jitter so synchronized workers
// spread out.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase
	for i := 0; i < attempt && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	jitter := 1 + backoffJitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}

// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package supervisor

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// serviceFunc adapts a Serve-shaped function to suture.Service.
type serviceFunc struct {
	name string
	run  func(ctx context.Context) error
}

// NewService wraps fn as a named suture service. Most components already
// expose Serve(ctx) error; this covers the ones that call it Run or need a
// closure.
func NewService(name string, fn func(ctx context.Context) error) suture.Service {
	return &serviceFunc{name: name, run: fn}
}

func (s *serviceFunc) Serve(ctx context.Context) error {
	return s.run(ctx)
}

func (s *serviceFunc) String() string {
	return s.name
}

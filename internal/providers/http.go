// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tomtom215/scriptorium/internal/models"
)

// classifyHTTPErr maps a transport-level request failure into the taxonomy.
func classifyHTTPErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTransient(models.ErrTypeTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return models.NewTransient(models.ErrTypeNetwork, err)
}

// classifyStatus maps a non-2xx response into the taxonomy. The body is
// included in the message for operator diagnosis, bounded to keep log and
// DLQ records small.
func classifyStatus(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("%s returned status %d: %s", provider, resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.NewTerminal(models.ErrTypeAuth, err)
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.NewTransient(models.ErrTypeRateLimit, err)
	case resp.StatusCode == http.StatusNotFound:
		return models.NewTerminal(models.ErrTypeNotFound, err)
	case resp.StatusCode >= 500:
		return models.NewTransient(models.ErrTypeServiceUnavailable, err)
	case resp.StatusCode >= 400:
		return models.NewTerminal(models.ErrTypeInvalidInput, err)
	default:
		return models.NewTransient(models.ErrTypeInternal, err)
	}
}

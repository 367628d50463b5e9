// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLedgerCheck(t *testing.T) {
	before := testutil.ToFloat64(LedgerChecks.WithLabelValues("speech_to_text", "deny"))

	RecordLedgerCheck("speech_to_text", false)

	after := testutil.ToFloat64(LedgerChecks.WithLabelValues("speech_to_text", "deny"))
	if after != before+1 {
		t.Errorf("deny counter = %v, want %v", after, before+1)
	}
}

func TestRecordDLQEntryAndReplay(t *testing.T) {
	depthBefore := testutil.ToFloat64(DLQDepth)

	RecordDLQEntry("transcribe", "high")
	if got := testutil.ToFloat64(DLQDepth); got != depthBefore+1 {
		t.Errorf("DLQDepth after enqueue = %v, want %v", got, depthBefore+1)
	}

	RecordDLQReplay(true)
	if got := testutil.ToFloat64(DLQDepth); got != depthBefore {
		t.Errorf("DLQDepth after replay = %v, want %v", got, depthBefore)
	}

	RecordDLQReplay(false)
	if got := testutil.ToFloat64(DLQDepth); got != depthBefore {
		t.Errorf("failed replay must not change depth: got %v, want %v", got, depthBefore)
	}
}

func TestSetSinkHealth(t *testing.T) {
	SetSinkHealth("semantic", true)
	if got := testutil.ToFloat64(SinkHealthy.WithLabelValues("semantic")); got != 1 {
		t.Errorf("healthy gauge = %v, want 1", got)
	}

	SetSinkHealth("semantic", false)
	if got := testutil.ToFloat64(SinkHealthy.WithLabelValues("semantic")); got != 0 {
		t.Errorf("unhealthy gauge = %v, want 0", got)
	}
}

func TestRecordSinkWriteOutcomes(t *testing.T) {
	errBefore := testutil.ToFloat64(SinkWrites.WithLabelValues("keyword", "error"))
	okBefore := testutil.ToFloat64(SinkWrites.WithLabelValues("keyword", "success"))

	RecordSinkWrite("keyword", 5*time.Millisecond, nil)
	RecordSinkWrite("keyword", 5*time.Millisecond, errContrived)

	if got := testutil.ToFloat64(SinkWrites.WithLabelValues("keyword", "success")); got != okBefore+1 {
		t.Errorf("success counter = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(SinkWrites.WithLabelValues("keyword", "error")); got != errBefore+1 {
		t.Errorf("error counter = %v, want %v", got, errBefore+1)
	}
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	RecordRun("success", 2*time.Minute, 97.5)
	RecordStageJob("transcribe", "success", 30*time.Second)
	RecordStageRetry("transcribe")
	RecordStoreTxn("upsert_video", time.Millisecond)
	RecordTransition("discovered", "transcription_queued")
	RecordAlert("budget_warning", "throttled")
	RecordProviderRequest("speech_to_text", "rate_limited", 250*time.Millisecond)
	RecordRetrieval("comprehensive", "success", 400*time.Millisecond, 10)
	RecordSourceQuery("keyword", 1500*time.Millisecond, "timeout")
	RecordSourceQuery("semantic", 80*time.Millisecond, "")
	RecordPolicyViolation("email", "redact")
	RecordEventPublished("pipeline.video.transitioned")
	RecordEventConsumed("pipeline.video.transitioned", "processed")
	RecordAPIRequest("POST", "/api/v1/retrieve", 200, 12*time.Millisecond)
	SetCircuitBreakerState("llm", 2)
}

type contrivedError struct{}

func (contrivedError) Error() string { return "sink write failed" }

var errContrived = contrivedError{}

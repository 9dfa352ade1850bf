package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobMetricsRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.IncSuccess("reconcile-invoices")
	m.IncSuccess("reconcile-invoices")
	m.IncFailure("reconcile-invoices")
	m.ObserveDuration("reconcile-invoices", 250*time.Millisecond)

	if got := testutil.ToFloat64(m.success.WithLabelValues("reconcile-invoices")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("reconcile-invoices")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestJobMetricsNilSafe(t *testing.T) {
	var m *JobMetrics
	m.IncSuccess("x")
	m.IncFailure("x")
	m.ObserveDuration("x", time.Second)

	empty := NewJobMetrics(nil)
	empty.IncSuccess("x")
}

func TestSettlementMetricsNilSafe(t *testing.T) {
	var m *SettlementMetrics
	m.IncCredits()
	m.IncSweeps()
	m.IncScanErrors()
	m.IncEnqueued()
	m.IncDeadLetters()

	reg := prometheus.NewRegistry()
	real := NewSettlementMetrics(reg)
	real.IncCredits()
	if got := testutil.ToFloat64(real.credits); got != 1 {
		t.Fatalf("expected 1 credit, got %v", got)
	}
}

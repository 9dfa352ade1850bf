package metrics

import "github.com/prometheus/client_golang/prometheus"

// SettlementMetrics counts the externally visible effects of the engine.
type SettlementMetrics struct {
	credits     prometheus.Counter
	sweeps      prometheus.Counter
	scanErrors  prometheus.Counter
	enqueued    prometheus.Counter
	deadLetters prometheus.Counter
}

// NewSettlementMetrics registers settlement counters on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	credits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_merchant_credits_total",
		Help: "Merchant balance credits applied.",
	})
	sweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_sweeps_total",
		Help: "Completed custody sweeps.",
	})
	scanErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_scan_read_errors_total",
		Help: "Per-address balance read failures skipped during scans.",
	})
	enqueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_sweep_jobs_enqueued_total",
		Help: "Sweep jobs enqueued by the watcher.",
	})
	deadLetters := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_sweep_jobs_dead_total",
		Help: "Sweep jobs moved to the dead-letter state.",
	})
	reg.MustRegister(credits, sweeps, scanErrors, enqueued, deadLetters)
	return &SettlementMetrics{
		credits:     credits,
		sweeps:      sweeps,
		scanErrors:  scanErrors,
		enqueued:    enqueued,
		deadLetters: deadLetters,
	}
}

// IncCredits counts a merchant credit.
func (m *SettlementMetrics) IncCredits() {
	if m == nil || m.credits == nil {
		return
	}
	m.credits.Inc()
}

// IncSweeps counts a completed sweep.
func (m *SettlementMetrics) IncSweeps() {
	if m == nil || m.sweeps == nil {
		return
	}
	m.sweeps.Inc()
}

// IncScanErrors counts a skipped balance read.
func (m *SettlementMetrics) IncScanErrors() {
	if m == nil || m.scanErrors == nil {
		return
	}
	m.scanErrors.Inc()
}

// IncEnqueued counts an enqueued sweep job.
func (m *SettlementMetrics) IncEnqueued() {
	if m == nil || m.enqueued == nil {
		return
	}
	m.enqueued.Inc()
}

// IncDeadLetters counts a dead-lettered sweep job.
func (m *SettlementMetrics) IncDeadLetters() {
	if m == nil || m.deadLetters == nil {
		return
	}
	m.deadLetters.Inc()
}

// Package metrics provides Prometheus collectors for audit operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricAuditsLoggedTotal       = "supportaudit_audits_logged_total"
	MetricExtractionFailuresTotal = "supportaudit_extraction_failures_total"
	MetricScoringDuration         = "supportaudit_scoring_duration_seconds"
	MetricLedgerWipesTotal        = "supportaudit_ledger_wipes_total"
)

// Metrics contains the Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can run without a registry.
type Metrics struct {
	auditsLogged       *prometheus.CounterVec
	extractionFailures *prometheus.CounterVec
	scoringDuration    prometheus.Histogram
	ledgerWipes        prometheus.Counter
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		auditsLogged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuditsLoggedTotal,
				Help: "Total number of audits written to the ledger by audit type and derived status",
			},
			[]string{"audit_type", "status"},
		),
		extractionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricExtractionFailuresTotal,
				Help: "Total number of scoring responses that yielded no result, by failure kind",
			},
			[]string{"kind"},
		),
		scoringDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricScoringDuration,
				Help:    "Histogram of scoring service call duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		ledgerWipes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricLedgerWipesTotal,
				Help: "Total number of full ledger wipes",
			},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.auditsLogged,
		m.extractionFailures,
		m.scoringDuration,
		m.ledgerWipes,
	}
}

// IncAuditsLogged counts one ledger write.
func (m *Metrics) IncAuditsLogged(auditType, status string) {
	if m == nil {
		return
	}
	m.auditsLogged.WithLabelValues(auditType, status).Inc()
}

// IncExtractionFailures counts one response that produced no result.
func (m *Metrics) IncExtractionFailures(kind string) {
	if m == nil {
		return
	}
	m.extractionFailures.WithLabelValues(kind).Inc()
}

// ObserveScoringDuration records a scoring call duration sample.
func (m *Metrics) ObserveScoringDuration(seconds float64) {
	if m == nil {
		return
	}
	m.scoringDuration.Observe(seconds)
}

// IncLedgerWipes counts one full wipe.
func (m *Metrics) IncLedgerWipes() {
	if m == nil {
		return
	}
	m.ledgerWipes.Inc()
}

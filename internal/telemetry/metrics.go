// Package telemetry exposes scan metrics in Prometheus format.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

const namespace = "patchverify"

// Metrics holds the collectors for one process. Each instance owns its
// registry so tests and embedded uses do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal     prometheus.Counter
	scanDuration   prometheus.Histogram
	verdictsTotal  *prometheus.CounterVec
	probeRunsTotal *prometheus.CounterVec
	intelQueries   *prometheus.CounterVec
	riskScore      *prometheus.GaugeVec
}

// NewMetrics registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scansTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed upgrade scans.",
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall-clock duration of a scan.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		verdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Promise verdicts by status.",
		}, []string{"status"}),
		probeRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_runs_total",
			Help:      "Behavioral probe runs by bug class and final state.",
		}, []string{"bug_class", "state"}),
		intelQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intelligence_queries_total",
			Help:      "Vulnerability intelligence lookups by source and result.",
		}, []string{"source", "result"}),
		riskScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Risk score of the latest scan per application.",
		}, []string{"app"}),
	}
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScan records a completed scan
func (m *Metrics) ObserveScan(record *entities.ScanRecord) {
	m.scansTotal.Inc()
	if d := record.Completed.Sub(record.Started); d > 0 {
		m.scanDuration.Observe(d.Seconds())
	}
	for _, v := range record.Verdicts {
		m.verdictsTotal.WithLabelValues(string(v.Verdict.Status)).Inc()
	}
	m.riskScore.WithLabelValues(record.App).Set(record.RiskScore)
}

// ObserveProbe records one probe run
func (m *Metrics) ObserveProbe(class entities.BugClass, result entities.ProbeResult) {
	state := result.State
	if state == "" {
		state = entities.ProbeStateNotRun
	}
	m.probeRunsTotal.WithLabelValues(string(class), string(state)).Inc()
}

// ObserveIntelligence records one intelligence lookup; err nil counts as success
func (m *Metrics) ObserveIntelligence(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.intelQueries.WithLabelValues(source, result).Inc()
}

// WriteToTextfile writes every metric in the node_exporter textfile format.
// The write is atomic: readers never see a partial file.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

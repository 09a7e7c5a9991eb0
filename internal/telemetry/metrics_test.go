package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

func TestMetrics_ObserveScan(t *testing.T) {
	m := NewMetrics()
	start := time.Now()
	m.ObserveScan(&entities.ScanRecord{
		App:       "flask",
		Started:   start,
		Completed: start.Add(2 * time.Second),
		RiskScore: 42.5,
		Verdicts: []entities.PromiseVerdict{
			{Verdict: entities.Verdict{Status: entities.StatusFixed}},
			{Verdict: entities.Verdict{Status: entities.StatusFixed}},
			{Verdict: entities.Verdict{Status: entities.StatusNotFixed}},
		},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.verdictsTotal.WithLabelValues("FIXED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdictsTotal.WithLabelValues("NOT_FIXED")))
	assert.Equal(t, 42.5, testutil.ToFloat64(m.riskScore.WithLabelValues("flask")))
}

func TestMetrics_ProbeAndIntel(t *testing.T) {
	m := NewMetrics()
	m.ObserveProbe(entities.BugClassMemoryLeak, entities.ProbeResult{State: entities.ProbeStateCompleted})
	m.ObserveProbe(entities.BugClassMemoryLeak, entities.ProbeResult{})
	m.ObserveIntelligence("osv", nil)
	m.ObserveIntelligence("nvd", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.probeRunsTotal.WithLabelValues("memory_leak", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probeRunsTotal.WithLabelValues("memory_leak", "NOT_RUN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.intelQueries.WithLabelValues("osv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.intelQueries.WithLabelValues("nvd", "error")))
}

func TestMetrics_WriteToTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveIntelligence("osv", nil)
	path := filepath.Join(t.TempDir(), "metrics", "patchverify.prom")

	require.NoError(t, m.WriteToTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `patchverify_intelligence_queries_total{result="ok",source="osv"} 1`)
	assert.Contains(t, string(data), "# TYPE patchverify_scans_total counter")
}

package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/domain/report"
)

func TestRunMetrics_RecordRun(t *testing.T) {
	m := New()
	m.RecordRun(&report.StageReport{
		Mode:            "tolerant",
		RecordsRead:     10,
		RecordErrors:    1,
		Mapped:          8,
		Ambiguous:       1,
		Unmapped:        1,
		FlagsByKind:     map[string]int{"OUT_OF_RANGE": 3, "UNMAPPED_CLASS": 1},
		FlagsBySeverity: map[string]int{"error": 4},
		ReviewQueue:     2,
		DurationMS:      1500,
	})
	m.RecordFailure("strict")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			label := ""
			for _, lp := range metric.GetLabel() {
				label += lp.GetName() + "=" + lp.GetValue() + ","
			}
			key := mf.GetName() + "{" + label + "}"
			switch {
			case metric.GetCounter() != nil:
				values[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				values[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, 10.0, values["trustbim_records_read_total{}"])
	assert.Equal(t, 1.0, values["trustbim_record_errors_total{}"])
	assert.Equal(t, 7.0, values["trustbim_entities_total{outcome=mapped,}"])
	assert.Equal(t, 1.0, values["trustbim_entities_total{outcome=ambiguous,}"])
	assert.Equal(t, 3.0, values["trustbim_flags_total{kind=OUT_OF_RANGE,}"])
	assert.Equal(t, 4.0, values["trustbim_flags_by_severity_total{severity=error,}"])
	assert.Equal(t, 2.0, values["trustbim_review_queue{}"])
	assert.Equal(t, 1.0, values["trustbim_runs_total{mode=tolerant,status=ok,}"])
	assert.Equal(t, 1.0, values["trustbim_runs_total{mode=strict,status=failed,}"])
	assert.Equal(t, 1.0, values["trustbim_run_duration_seconds{}"])
}

func TestRunMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.RecordRun(&report.StageReport{Mode: "tolerant", ReviewQueue: 5})

	path := filepath.Join(t.TempDir(), "trustbim.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "trustbim_review_queue 5")
	assert.Contains(t, string(data), "# HELP trustbim_runs_total")

	assert.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}

// Package metrics records run metrics in a Prometheus registry and exports
// them through the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ersonp/trustbim/internal/domain/report"
)

// RunMetrics holds the collectors of one process.
type RunMetrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RecordsRead      prometheus.Counter
	RecordErrors     prometheus.Counter
	EntitiesTotal    *prometheus.CounterVec
	FlagsTotal       *prometheus.CounterVec
	FlagsBySeverity  *prometheus.CounterVec
	ReviewQueue      prometheus.Gauge
	EntityFailures   prometheus.Counter
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
}

// New creates run metrics on a private registry.
func New() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustbim_runs_total",
				Help: "Total number of validation runs",
			},
			[]string{"mode", "status"},
		),
		RecordsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustbim_records_read_total",
			Help: "Total number of input records read",
		}),
		RecordErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustbim_record_errors_total",
			Help: "Total number of input records rejected by the parser",
		}),
		EntitiesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustbim_entities_total",
				Help: "Total number of validated entities by outcome",
			},
			[]string{"outcome"},
		),
		FlagsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustbim_flags_total",
				Help: "Total number of flags raised by kind",
			},
			[]string{"kind"},
		),
		FlagsBySeverity: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustbim_flags_by_severity_total",
				Help: "Total number of flags raised by severity",
			},
			[]string{"severity"},
		),
		ReviewQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trustbim_review_queue",
			Help: "Entities routed to review in the last run",
		}),
		EntityFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustbim_entity_failures_total",
			Help: "Total number of entities whose rule evaluation failed",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustbim_run_duration_seconds",
			Help:    "Duration of validation runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trustbim_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
	}
}

// Registry returns the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records a completed run from its stage report.
func (m *RunMetrics) RecordRun(r *report.StageReport) {
	m.RunsTotal.WithLabelValues(r.Mode, "ok").Inc()
	m.RecordsRead.Add(float64(r.RecordsRead))
	m.RecordErrors.Add(float64(r.RecordErrors))
	m.EntitiesTotal.WithLabelValues("mapped").Add(float64(r.Mapped - r.Ambiguous))
	m.EntitiesTotal.WithLabelValues("ambiguous").Add(float64(r.Ambiguous))
	m.EntitiesTotal.WithLabelValues("unmapped").Add(float64(r.Unmapped))
	for kind, n := range r.FlagsByKind {
		m.FlagsTotal.WithLabelValues(kind).Add(float64(n))
	}
	for sev, n := range r.FlagsBySeverity {
		m.FlagsBySeverity.WithLabelValues(sev).Add(float64(n))
	}
	m.ReviewQueue.Set(float64(r.ReviewQueue))
	m.EntityFailures.Add(float64(r.EntityErrors))
	m.RunDuration.Observe((time.Duration(r.DurationMS) * time.Millisecond).Seconds())
	m.LastRunTimestamp.SetToCurrentTime()
}

// RecordFailure records a run that did not complete.
func (m *RunMetrics) RecordFailure(mode string) {
	m.RunsTotal.WithLabelValues(mode, "failed").Inc()
}

// WriteTextfile writes the registry in the Prometheus text format.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

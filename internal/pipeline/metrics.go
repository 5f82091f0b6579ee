package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the pipeline. One instance per process, registered on
// the registry the monitor server exposes.
type Metrics struct {
	StepDuration      *prometheus.HistogramVec
	RunsTotal         *prometheus.CounterVec
	ScrubReplacements *prometheus.CounterVec
	AuditFindings     *prometheus.CounterVec
	LastRunTimestamp  prometheus.Gauge
}

// NewMetrics builds and registers the pipeline collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "macrobrief",
			Name:      "pipeline_step_duration_seconds",
			Help:      "Duration of each pipeline step.",
			Buckets:   []float64{0.01, 0.05, 0.25, 1, 5, 15, 60, 180},
		}, []string{"step"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macrobrief",
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal status.",
		}, []string{"status"}),
		ScrubReplacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macrobrief",
			Name:      "scrub_replacements_total",
			Help:      "Scrubber replacements by rule.",
		}, []string{"rule"}),
		AuditFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macrobrief",
			Name:      "audit_findings_total",
			Help:      "Audit findings by kind.",
		}, []string{"kind"}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "macrobrief",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.StepDuration, m.RunsTotal, m.ScrubReplacements, m.AuditFindings, m.LastRunTimestamp)
	}
	return m
}

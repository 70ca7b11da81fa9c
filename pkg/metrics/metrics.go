// Package metrics exposes Prometheus instrumentation for refresh runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded during a refresh run.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	pullRecords   *prometheus.CounterVec
	pullFiles     *prometheus.CounterVec
	pullErrors    *prometheus.CounterVec
	commitsTotal  *prometheus.CounterVec
	lastRunTime   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with the registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguemirror_runs_total",
				Help: "Total refresh runs by outcome",
			},
			[]string{"status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaguemirror_stage_duration_seconds",
				Help:    "Duration of each refresh stage",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		pullRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguemirror_pull_records_total",
				Help: "Total records pulled by job",
			},
			[]string{"job"},
		),
		pullFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguemirror_pull_files_total",
				Help: "Total archive files written by job",
			},
			[]string{"job"},
		),
		pullErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguemirror_pull_errors_total",
				Help: "Total pull failures by job",
			},
			[]string{"job"},
		),
		commitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaguemirror_commits_total",
				Help: "Total publish outcomes",
			},
			[]string{"result"},
		),
		lastRunTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "leaguemirror_last_run_timestamp_seconds",
				Help: "Unix timestamp of the last completed run",
			},
		),
	}

	registry.MustRegister(
		m.runsTotal,
		m.stageDuration,
		m.pullRecords,
		m.pullFiles,
		m.pullErrors,
		m.commitsTotal,
		m.lastRunTime,
	)

	return m
}

// RecordRun records the outcome of a full refresh run.
func (m *Metrics) RecordRun(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.lastRunTime.SetToCurrentTime()
}

// RecordStage records one stage's duration.
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordPull records a completed pull job.
func (m *Metrics) RecordPull(job string, records, files int) {
	m.pullRecords.WithLabelValues(job).Add(float64(records))
	m.pullFiles.WithLabelValues(job).Add(float64(files))
}

// RecordPullError records a failed pull job.
func (m *Metrics) RecordPullError(job string) {
	m.pullErrors.WithLabelValues(job).Inc()
}

// RecordCommit records a publish outcome ("committed", "pushed", "no_changes",
// "push_failed").
func (m *Metrics) RecordCommit(result string) {
	m.commitsTotal.WithLabelValues(result).Inc()
}

// Package metrics records what a publish run did as Prometheus metrics.
//
// A run is a short-lived process, so metrics live on a private registry and
// are written out once at the end in the node_exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Publish status label values
const (
	StatusPublished  = "published"
	StatusFailed     = "failed"
	StatusRolledBack = "rolled_back"
)

// RunMetrics holds the collectors for one run
type RunMetrics struct {
	registry *prometheus.Registry

	entriesClassified *prometheus.CounterVec
	secretsPublished  *prometheus.CounterVec
	rollbacks         *prometheus.CounterVec
	publishDuration   *prometheus.HistogramVec
	lastRunTimestamp  prometheus.Gauge
}

// New creates and registers the run collectors
func New() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),

		entriesClassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretseed_entries_classified_total",
				Help: "Secret entries classified, by location kind",
			},
			[]string{"kind"},
		),
		secretsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretseed_secrets_published_total",
				Help: "Secrets sent to a sink, by sink and outcome",
			},
			[]string{"sink", "status"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretseed_rollback_total",
				Help: "Resources deleted while rolling back a failed run",
			},
			[]string{"sink"},
		),
		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretseed_publish_duration_seconds",
				Help:    "Duration of a single sink publish call in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"sink"},
		),
		lastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "secretseed_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}

	m.registry.MustRegister(
		m.entriesClassified,
		m.secretsPublished,
		m.rollbacks,
		m.publishDuration,
		m.lastRunTimestamp,
	)
	return m
}

// Registry exposes the underlying registry for gathering
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordClassified counts one classified entry
func (m *RunMetrics) RecordClassified(kind string) {
	m.entriesClassified.WithLabelValues(kind).Inc()
}

// RecordPublish counts one publish attempt and its duration
func (m *RunMetrics) RecordPublish(sink, status string, durationSeconds float64) {
	m.secretsPublished.WithLabelValues(sink, status).Inc()
	if status != StatusRolledBack {
		m.publishDuration.WithLabelValues(sink).Observe(durationSeconds)
	}
}

// RecordRollback counts one resource removed during rollback
func (m *RunMetrics) RecordRollback(sink string) {
	m.rollbacks.WithLabelValues(sink).Inc()
}

// MarkFinished sets the last-run timestamp to now
func (m *RunMetrics) MarkFinished() {
	m.lastRunTimestamp.SetToCurrentTime()
}

// WriteTextfile writes all metrics to path in the textfile collector format
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Package metrics records attempt outcomes and exports them as a Prometheus
// textfile for node_exporter's textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ptw/internal/domain"
)

const MetricsNamespace = "ptw"

// Recorder holds the metrics of one ptw run
type Recorder struct {
	registry *prometheus.Registry

	attemptsTotal    *prometheus.CounterVec
	fatalTotal       *prometheus.CounterVec
	failedGroups     prometheus.Gauge
	attemptDuration  prometheus.Histogram
	lastRunExitCode  *prometheus.GaugeVec
	lastRunTimestamp prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		attemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "attempts_total",
			Help:      "Number of supervised attempts by terminal state",
		}, []string{"state"}),
		fatalTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "fatal_total",
			Help:      "Number of attempts the supervisor had to terminate, by reason",
		}, []string{"state"}),
		failedGroups: f.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "failed_groups",
			Help:      "Number of failed test groups in the latest attempt",
		}),
		attemptDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of supervised attempts",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		lastRunExitCode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_exit_code",
			Help:      "Exit code of the latest run",
		}, []string{"run_id"}),
		lastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the latest run finished",
		}),
	}
}

// RecordAttempt records the outcome of one attempt
func (r *Recorder) RecordAttempt(res domain.AttemptResult) {
	r.attemptsTotal.WithLabelValues(string(res.State)).Inc()
	if res.State.IsFatal() {
		r.fatalTotal.WithLabelValues(string(res.State)).Inc()
	}
	r.failedGroups.Set(float64(res.FailedGroups.Len()))
	r.attemptDuration.Observe(res.Duration.Seconds())
}

// RecordRun records the final outcome of a run
func (r *Recorder) RecordRun(report *domain.RunReport) {
	r.lastRunExitCode.WithLabelValues(report.RunID).Set(float64(report.ExitCode))
	r.lastRunTimestamp.SetToCurrentTime()
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes every metric to path in the text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Package metrics exposes Prometheus metrics for measurement generation
// and background work
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carbon"

// Metrics holds the collectors of the service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	measurementsGenerated *prometheus.CounterVec
	backfillRuns          *prometheus.CounterVec
	backfillDuration      prometheus.Histogram
	tickZones             *prometheus.CounterVec
	jobRuns               *prometheus.CounterVec
	jobDuration           *prometheus.HistogramVec
	queueDepth            prometheus.Gauge
	dispatchRejected      prometheus.Counter
	publishErrors         prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.measurementsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_generated_total",
			Help:      "Synthetic measurements written, by source",
		},
		[]string{"source"}, // backfill, tick
	)

	m.backfillRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_runs_total",
			Help:      "Historical backfill runs by outcome",
		},
		[]string{"status"}, // success, skipped, error
	)

	m.backfillDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backfill_duration_seconds",
		Help:      "Time taken to backfill one zone",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.tickZones = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_zones_total",
			Help:      "Zones advanced by the live ticker, by outcome",
		},
		[]string{"status"},
	)

	m.jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduled job executions by job and outcome",
		},
		[]string{"job", "status"},
	)

	m.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_duration_seconds",
			Help:      "Duration of scheduled job executions",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatch_queue_depth",
		Help:      "Backfill jobs waiting for a worker",
	})

	m.dispatchRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_rejected_total",
		Help:      "Backfill jobs rejected because the queue was full",
	})

	m.publishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_errors_total",
		Help:      "Measurement batches that failed to publish",
	})

	if err := m.registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.measurementsGenerated.Describe(ch)
	m.backfillRuns.Describe(ch)
	m.backfillDuration.Describe(ch)
	m.tickZones.Describe(ch)
	m.jobRuns.Describe(ch)
	m.jobDuration.Describe(ch)
	m.queueDepth.Describe(ch)
	m.dispatchRejected.Describe(ch)
	m.publishErrors.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.measurementsGenerated.Collect(ch)
	m.backfillRuns.Collect(ch)
	m.backfillDuration.Collect(ch)
	m.tickZones.Collect(ch)
	m.jobRuns.Collect(ch)
	m.jobDuration.Collect(ch)
	m.queueDepth.Collect(ch)
	m.dispatchRejected.Collect(ch)
	m.publishErrors.Collect(ch)
}

// RecordGenerated counts measurements written by a source
func (m *Metrics) RecordGenerated(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.measurementsGenerated.WithLabelValues(source).Add(float64(n))
}

// RecordBackfill records the outcome and duration of a backfill run
func (m *Metrics) RecordBackfill(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.backfillRuns.WithLabelValues(status).Inc()
	m.backfillDuration.Observe(d.Seconds())
}

// RecordTickZone records the outcome of advancing one zone
func (m *Metrics) RecordTickZone(status string) {
	if m == nil {
		return
	}
	m.tickZones.WithLabelValues(status).Inc()
}

// RecordJob records one scheduled job execution
func (m *Metrics) RecordJob(job, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// SetQueueDepth sets the number of pending backfill jobs
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// RecordDispatchRejected counts a job dropped on a full queue
func (m *Metrics) RecordDispatchRejected() {
	if m == nil {
		return
	}
	m.dispatchRejected.Inc()
}

// RecordPublishError counts a failed publish
func (m *Metrics) RecordPublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

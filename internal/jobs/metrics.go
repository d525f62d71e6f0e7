package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for ledger jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	entries     *prometheus.CounterVec
	lockSkips   *prometheus.CounterVec
	reconFailed *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against registerer. A nil registerer
// shares one set registered on the default Prometheus registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker instruments a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and outcome, returning err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddEntries counts journal entry candidates by category and outcome
// (generated, existing, skipped, failed).
func (m *Metrics) AddEntries(category, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.entries.WithLabelValues(category, outcome).Add(float64(count))
}

// LockSkipped counts runs that found the company pass lock held.
func (m *Metrics) LockSkipped(job string) {
	if m == nil {
		return
	}
	m.lockSkips.WithLabelValues(job).Inc()
}

// AddReconciliationFailures counts banks left unreconciled by step.
func (m *Metrics) AddReconciliationFailures(step string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.reconFailed.WithLabelValues(step).Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_generated_total",
		Help: "Journal entry candidates handled by backfill, by category and outcome.",
	}, []string{"category", "outcome"})
	lockSkips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_pass_lock_skips_total",
		Help: "Job runs skipped because another pass held the company lock.",
	}, []string{"job"})
	reconFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reconciliation_failures_total",
		Help: "Banks left unreconciled, by failing step.",
	}, []string{"step"})
	registerer.MustRegister(runs, failures, duration, entries, lockSkips, reconFailed)
	return &Metrics{
		runs:        runs,
		failures:    failures,
		duration:    duration,
		entries:     entries,
		lockSkips:   lockSkips,
		reconFailed: reconFailed,
	}
}

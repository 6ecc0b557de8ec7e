package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records per-job outcomes for the scheduled sweeps.
type CronJobMetrics struct {
	duration  *prometheus.HistogramVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron collectors on the provided registerer.
// A nil registerer yields a no-op collector, which keeps tests and one-off
// tooling from having to wire Prometheus.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of scheduled job runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	successes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_successes_total",
		Help: "Scheduled job runs that completed without error.",
	}, []string{"job"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_failures_total",
		Help: "Scheduled job runs that returned an error.",
	}, []string{"job"})
	reg.MustRegister(duration, successes, failures)
	return &CronJobMetrics{
		duration:  duration,
		successes: successes,
		failures:  failures,
	}
}

// ObserveDuration records how long the named job ran.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a clean run of the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.successes == nil {
		return
	}
	c.successes.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure counts a failed run of the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(job)).Inc()
}

// normalizeLabel keeps label cardinality sane when a caller passes an empty
// name. Shared with the dispatch collectors.
func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}

// ============================================================================
// TaskForge Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Export pool counters to Prometheus
//
// Metric Categories:
//
//   1. Job Counters - cumulative, monotonically increasing:
//      - taskforge_jobs_submitted_total
//      - taskforge_jobs_completed_total
//      - taskforge_jobs_failed_total     (user function panicked)
//      - taskforge_jobs_rejected_total   (submission after shutdown began)
//
//   2. Performance Metrics (Histogram):
//      - taskforge_job_duration_seconds: user function run time
//
//   3. Status Metrics (Gauge) - instantaneous values:
//      - taskforge_workers_alive
//      - taskforge_workers_working
//      - taskforge_queue_depth
//
// The pool itself knows nothing about Prometheus: the Collector polls
// pool.Stats() snapshots and converts counter deltas into Counter.Add calls.
//
// Prometheus Query Examples:
//
//   # Jobs per minute
//   rate(taskforge_jobs_completed_total[1m])
//
//   # Worker utilisation
//   taskforge_workers_working / taskforge_workers_alive
//
//   # Backlog
//   taskforge_queue_depth
//
// ============================================================================

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskforge/taskforge/pkg/pool"
)

// Collector converts pool statistics into Prometheus metrics.
type Collector struct {
	jobsSubmitted prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsRejected  prometheus.Counter

	jobDuration prometheus.Histogram

	workersAlive   prometheus.Gauge
	workersWorking prometheus.Gauge
	queueDepth     prometheus.Gauge

	mu   sync.Mutex
	last pool.Stats
}

// NewCollector creates a collector and registers its metrics with the
// default Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_jobs_submitted_total",
			Help: "Total number of jobs accepted by the pool",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_jobs_completed_total",
			Help: "Total number of jobs that ran to completion",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_jobs_failed_total",
			Help: "Total number of jobs that panicked",
		}),
		jobsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskforge_jobs_rejected_total",
			Help: "Total number of submissions rejected after shutdown began",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskforge_job_duration_seconds",
			Help:    "User function run time in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		workersAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskforge_workers_alive",
			Help: "Workers currently inside their main loop",
		}),
		workersWorking: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskforge_workers_working",
			Help: "Workers currently inside a user function",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskforge_queue_depth",
			Help: "Jobs waiting to be pulled",
		}),
	}

	prometheus.MustRegister(
		c.jobsSubmitted, c.jobsCompleted, c.jobsFailed, c.jobsRejected,
		c.jobDuration,
		c.workersAlive, c.workersWorking, c.queueDepth,
	)
	return c
}

// Observe folds a stats snapshot into the exported metrics. Gauges are set
// outright; cumulative counters advance by the delta against the previous
// snapshot.
func (c *Collector) Observe(st pool.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.workersAlive.Set(float64(st.Alive))
	c.workersWorking.Set(float64(st.Working))
	c.queueDepth.Set(float64(st.Queued))

	c.jobsSubmitted.Add(counterDelta(c.last.Submitted, st.Submitted))
	c.jobsCompleted.Add(counterDelta(c.last.Completed, st.Completed))
	c.jobsFailed.Add(counterDelta(c.last.Failed, st.Failed))
	c.jobsRejected.Add(counterDelta(c.last.Rejected, st.Rejected))

	c.last = st
}

func counterDelta(prev, cur uint64) float64 {
	if cur <= prev {
		return 0
	}
	return float64(cur - prev)
}

// ObserveDuration records one user function's run time.
func (c *Collector) ObserveDuration(d time.Duration) {
	c.jobDuration.Observe(d.Seconds())
}

// Poll snapshots the pool every interval until stop closes. A final
// snapshot is taken after stop so shutdown-time counters are not lost.
func (c *Collector) Poll(p *pool.Pool, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			c.Observe(p.Stats())
			return
		case <-ticker.C:
			c.Observe(p.Stats())
		}
	}
}

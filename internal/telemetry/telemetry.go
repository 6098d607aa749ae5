// Package telemetry registers the Prometheus metrics exported by the pool,
// session store, acquisition queue, and store monitor, and serves them over
// HTTP.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "browsercore"

// Collector owns every metric the core exports. One Collector is created per
// process and threaded into the components that record against it.
type Collector struct {
	registry *prometheus.Registry

	// Browser pool (BP)
	PoolTotalBrowsers      prometheus.Gauge
	PoolActiveBrowsers     prometheus.Gauge
	PoolIdleBrowsers       prometheus.Gauge
	PoolQueuedAcquisitions prometheus.Gauge
	PoolOldestQueueWait    prometheus.Gauge
	PoolAvgPageCount       prometheus.Gauge
	PoolBrowserErrors      prometheus.Counter
	PoolBrowsersCreated    prometheus.Counter
	PoolBrowsersDestroyed  prometheus.Counter
	PoolAcquireDuration    prometheus.Histogram

	// Session store (SS) + monitor (SM)
	StoreOpDuration      *prometheus.HistogramVec // labels: op, backend
	StoreOpErrors        *prometheus.CounterVec   // labels: op, backend
	StoreActiveSessions  prometheus.Gauge
	StoreExpiredSessions prometheus.Counter
	ReplicationLatency   *prometheus.HistogramVec // labels: replica
	ReplicationErrors    *prometheus.CounterVec   // labels: replica
	MigrationBatches     prometheus.Counter
	MigrationRecords     prometheus.Counter

	// Action executor (AE) / security validator (SV)
	ActionDuration   *prometheus.HistogramVec // labels: kind
	ActionErrors     *prometheus.CounterVec   // labels: kind, error_kind
	SecurityRejects  *prometheus.CounterVec   // labels: rule
}

// New constructs a Collector registered against a fresh, private registry —
// each process (and each test) gets its own registry so repeated
// construction never panics on duplicate registration.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.PoolTotalBrowsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "total_browsers",
		Help: "Total number of browser instances currently managed by the pool.",
	})
	c.PoolActiveBrowsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "active_browsers",
		Help: "Number of browser instances currently leased out.",
	})
	c.PoolIdleBrowsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "idle_browsers",
		Help: "Number of browser instances currently idle and available.",
	})
	c.PoolQueuedAcquisitions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "queued_acquisitions",
		Help: "Number of acquisition requests currently waiting for a browser.",
	})
	c.PoolOldestQueueWait = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "oldest_queue_wait_seconds",
		Help: "Age of the oldest waiter in the acquisition queue.",
	})
	c.PoolAvgPageCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "avg_page_count",
		Help: "Average number of open pages per browser instance.",
	})
	c.PoolBrowserErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "pool", Name: "browser_errors_total",
		Help: "Total errors recorded against any browser instance.",
	})
	c.PoolBrowsersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "pool", Name: "browsers_created_total",
		Help: "Total browser instances created.",
	})
	c.PoolBrowsersDestroyed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "pool", Name: "browsers_destroyed_total",
		Help: "Total browser instances destroyed.",
	})
	c.PoolAcquireDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "pool", Name: "acquire_duration_seconds",
		Help:    "Time spent waiting to acquire a browser instance.",
		Buckets: prometheus.DefBuckets,
	})

	c.StoreOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "store", Name: "op_duration_seconds",
		Help:    "Session store operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "backend"})
	c.StoreOpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store", Name: "op_errors_total",
		Help: "Session store operation errors.",
	}, []string{"op", "backend"})
	c.StoreActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "store", Name: "active_sessions",
		Help: "Number of non-expired sessions currently in the store.",
	})
	c.StoreExpiredSessions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store", Name: "expired_sessions_total",
		Help: "Total sessions that have expired and been reaped.",
	})
	c.ReplicationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "store", Name: "replication_latency_seconds",
		Help:    "Replication latency to each replica, used for p50/p95/p99 SLO tracking.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"replica"})
	c.ReplicationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store", Name: "replication_errors_total",
		Help: "Total replication failures per replica.",
	}, []string{"replica"})
	c.MigrationBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store", Name: "migration_batches_total",
		Help: "Total migration batches copied.",
	})
	c.MigrationRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store", Name: "migration_records_total",
		Help: "Total records migrated across all batches.",
	})

	c.ActionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "executor", Name: "action_duration_seconds",
		Help:    "Action execution latency by action kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	c.ActionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "executor", Name: "action_errors_total",
		Help: "Action execution errors by action kind and error kind.",
	}, []string{"kind", "error_kind"})
	c.SecurityRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "executor", Name: "security_rejects_total",
		Help: "Actions rejected by the security validator, by rule.",
	}, []string{"rule"})

	c.registry.MustRegister(
		c.PoolTotalBrowsers, c.PoolActiveBrowsers, c.PoolIdleBrowsers,
		c.PoolQueuedAcquisitions, c.PoolOldestQueueWait, c.PoolAvgPageCount,
		c.PoolBrowserErrors, c.PoolBrowsersCreated, c.PoolBrowsersDestroyed,
		c.PoolAcquireDuration,
		c.StoreOpDuration, c.StoreOpErrors, c.StoreActiveSessions,
		c.StoreExpiredSessions, c.ReplicationLatency, c.ReplicationErrors,
		c.MigrationBatches, c.MigrationRecords,
		c.ActionDuration, c.ActionErrors, c.SecurityRejects,
	)

	return c
}

// Handler returns the HTTP handler serving this collector's metrics in the
// Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveReplicationLatency records a single replication round trip.
func (c *Collector) ObserveReplicationLatency(replica string, d time.Duration) {
	c.ReplicationLatency.WithLabelValues(replica).Observe(d.Seconds())
}

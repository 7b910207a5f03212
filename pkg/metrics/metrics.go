// Package metrics declares the Prometheus instrumentation surface for
// the proxy's request path, backend writer pipeline, and replication
// engine, registered once at process start and handed down by
// reference the way the teacher's pkg/monitor exposes a shared
// registry to unrelated subsystems.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge/histogram the proxy emits. A
// single instance is constructed at startup and threaded through the
// HTTP gateway, backend, and replication packages.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AccessDenied    *prometheus.CounterVec

	ChunksWritten      prometheus.Counter
	ChunkRetriesTotal  prometheus.Counter
	BytesWrittenTotal  prometheus.Counter
	WriteFailuresTotal prometheus.Counter

	ReplicationSessionsActive prometheus.Gauge
	ReplicationObjectsPulled  prometheus.Counter
	ReplicationBatchesAborted prometheus.Counter
}

// New constructs and registers every metric against reg. Passing a
// fresh prometheus.NewRegistry() keeps tests isolated from the global
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataproxy",
			Name:      "requests_total",
			Help:      "S3 requests handled, by method and resulting status.",
		}, []string{"method", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dataproxy",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		AccessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataproxy",
			Name:      "access_denied_total",
			Help:      "Requests rejected by the rule engine or permission check, by scope.",
		}, []string{"scope"}),

		ChunksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dataproxy",
			Name:      "chunks_written_total",
			Help:      "Chunks accepted by the backend writer pipeline.",
		}),

		ChunkRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dataproxy",
			Name:      "chunk_retries_total",
			Help:      "Chunk validation failures that triggered a retry request.",
		}),

		BytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dataproxy",
			Name:      "bytes_written_total",
			Help:      "Chunk payload bytes accepted by the backend writer pipeline, before compression or encryption.",
		}),

		WriteFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dataproxy",
			Name:      "write_failures_total",
			Help:      "Backend writer pipeline failures after retries were exhausted.",
		}),

		ReplicationSessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dataproxy",
			Name:      "replication_sessions_active",
			Help:      "Open pull-replication sessions.",
		}),

		ReplicationObjectsPulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dataproxy",
			Name:      "replication_objects_pulled_total",
			Help:      "Objects successfully pulled from a peer endpoint.",
		}),

		ReplicationBatchesAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dataproxy",
			Name:      "replication_batches_aborted_total",
			Help:      "Replication batches abandoned after a protocol error or retry exhaustion.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.AccessDenied,
		m.ChunksWritten,
		m.ChunkRetriesTotal,
		m.BytesWrittenTotal,
		m.WriteFailuresTotal,
		m.ReplicationSessionsActive,
		m.ReplicationObjectsPulled,
		m.ReplicationBatchesAborted,
	)

	return m
}

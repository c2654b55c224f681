// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Lifecycle metrics
	OperationsTotal  *prometheus.CounterVec
	OperationErrors  *prometheus.CounterVec
	RollbacksTotal   prometheus.Counter
	OperationLatency *prometheus.HistogramVec

	// Curve metrics
	CurrentEpoch       prometheus.Gauge
	TotalLockedSupply  prometheus.Gauge
	SweepWeeksObserved prometheus.Histogram

	// Marker feed metrics
	CurrentMarker    prometheus.Gauge
	MarkerReconnects prometheus.Counter
	MarkerFeedErrors prometheus.Counter

	// Archive metrics
	ArchiveWrites      prometheus.Counter
	ArchiveWriteErrors prometheus.Counter
	ArchiveQueueDepth  prometheus.Gauge

	// Query metrics
	QueryLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vote_escrow_ledger"
	}

	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Total number of lifecycle operations by kind",
		}, []string{"operation"}),
		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "operation_errors_total",
			Help:      "Total number of rejected lifecycle operations by kind and reason",
		}, []string{"operation", "reason"}),
		RollbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "rollbacks_total",
			Help:      "Total number of operations rolled back after a failed token move",
		}),
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "operation_duration_seconds",
			Help:      "Lifecycle operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		CurrentEpoch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "current_epoch",
			Help:      "Highest recorded aggregate history epoch",
		}),
		TotalLockedSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "total_locked_supply",
			Help:      "Total locked principal across all accounts",
		}),
		SweepWeeksObserved: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "sweep_weeks",
			Help:      "Week boundaries crossed per checkpoint sweep",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 52, 104, 260},
		}),

		CurrentMarker: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "marker",
			Name:      "current_value",
			Help:      "Latest sequence marker observed from the feed",
		}),
		MarkerReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marker",
			Name:      "reconnects_total",
			Help:      "Total number of marker feed reconnects",
		}),
		MarkerFeedErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marker",
			Name:      "feed_errors_total",
			Help:      "Total number of marker feed read errors",
		}),

		ArchiveWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Total number of deltas written to storage",
		}),
		ArchiveWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "write_errors_total",
			Help:      "Total number of failed archive writes",
		}),
		ArchiveQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "queue_depth",
			Help:      "Deltas queued for archival",
		}),

		QueryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query duration in seconds by endpoint",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOperation counts one committed lifecycle operation.
func (m *Metrics) RecordOperation(op string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(seconds)
}

// RecordOperationError counts one rejected lifecycle operation.
func (m *Metrics) RecordOperationError(op, reason string) {
	if m == nil {
		return
	}
	m.OperationErrors.WithLabelValues(op, reason).Inc()
}

// UpdateLedgerState refreshes the epoch and supply gauges.
func (m *Metrics) UpdateLedgerState(epoch, supply uint64) {
	if m == nil {
		return
	}
	m.CurrentEpoch.Set(float64(epoch))
	m.TotalLockedSupply.Set(float64(supply))
}

// UpdateMarker refreshes the marker gauge.
func (m *Metrics) UpdateMarker(marker uint64) {
	if m == nil {
		return
	}
	m.CurrentMarker.Set(float64(marker))
}

// RecordRollback counts one operation undone after a failed token move.
func (m *Metrics) RecordRollback() {
	if m == nil {
		return
	}
	m.RollbacksTotal.Inc()
}

// ObserveSweep records the number of week boundaries a checkpoint crossed.
func (m *Metrics) ObserveSweep(weeks uint64) {
	if m == nil {
		return
	}
	m.SweepWeeksObserved.Observe(float64(weeks))
}

// RecordMarkerReconnect counts one marker feed reconnect.
func (m *Metrics) RecordMarkerReconnect() {
	if m == nil {
		return
	}
	m.MarkerReconnects.Inc()
}

// RecordMarkerFeedError counts one marker feed read or decode error.
func (m *Metrics) RecordMarkerFeedError() {
	if m == nil {
		return
	}
	m.MarkerFeedErrors.Inc()
}

// RecordArchiveWrite counts one delta fully persisted.
func (m *Metrics) RecordArchiveWrite() {
	if m == nil {
		return
	}
	m.ArchiveWrites.Inc()
}

// RecordArchiveWriteError counts one delta that was dropped or failed to
// persist completely.
func (m *Metrics) RecordArchiveWriteError() {
	if m == nil {
		return
	}
	m.ArchiveWriteErrors.Inc()
}

// SetArchiveQueueDepth refreshes the queued-delta gauge.
func (m *Metrics) SetArchiveQueueDepth(n int) {
	if m == nil {
		return
	}
	m.ArchiveQueueDepth.Set(float64(n))
}

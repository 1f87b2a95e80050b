package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the feed service.
type Metrics struct {
	// Stream metrics.
	StreamMessages   *prometheus.CounterVec // labels: outcome={accepted,rejected}
	StreamReconnects prometheus.Counter
	StreamConnected  prometheus.Gauge

	// Snapshot metrics.
	SnapshotRefreshes *prometheus.CounterVec // labels: outcome={success,error}
	SnapshotDuration  prometheus.Histogram
	SnapshotRejected  prometheus.Counter

	// View model gauges.
	StoreEvents   prometheus.Gauge
	StorePoints   prometheus.Gauge
	ArcBufferSize prometheus.Gauge

	// Relay metrics.
	RelayErrors prometheus.Counter
	GeoIPLookups *prometheus.CounterVec // labels: result={hit,miss,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		StreamMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "stream_messages_total",
			Help:      "Pushed messages by outcome.",
		}, []string{"outcome"}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "stream_reconnects_total",
			Help:      "Websocket reconnection attempts after a dial or read failure.",
		}),
		StreamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vigil",
			Name:      "stream_connected",
			Help:      "1 while the push feed is connected, 0 otherwise.",
		}),
		SnapshotRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "snapshot_refreshes_total",
			Help:      "Snapshot refresh attempts by outcome.",
		}, []string{"outcome"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vigil",
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of fetching and installing a snapshot.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SnapshotRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "snapshot_records_rejected_total",
			Help:      "Snapshot records dropped by validation.",
		}),
		StoreEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vigil",
			Name:      "store_events",
			Help:      "Events currently held by the store.",
		}),
		StorePoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vigil",
			Name:      "store_points",
			Help:      "Map points currently held by the store.",
		}),
		ArcBufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vigil",
			Name:      "arc_buffer_size",
			Help:      "Arcs currently held for the globe.",
		}),
		RelayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "relay_errors_total",
			Help:      "Streamed events the Kafka relay failed to publish.",
		}),
		GeoIPLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "geoip_lookups_total",
			Help:      "IP geolocation lookups by cache result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.StreamMessages,
		m.StreamReconnects,
		m.StreamConnected,
		m.SnapshotRefreshes,
		m.SnapshotDuration,
		m.SnapshotRejected,
		m.StoreEvents,
		m.StorePoints,
		m.ArcBufferSize,
		m.RelayErrors,
		m.GeoIPLookups,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		StreamMessages:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "vigil", Name: "stream_messages_total"}, []string{"outcome"}),
		StreamReconnects:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "vigil", Name: "stream_reconnects_total"}),
		StreamConnected:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "vigil", Name: "stream_connected"}),
		SnapshotRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "vigil", Name: "snapshot_refreshes_total"}, []string{"outcome"}),
		SnapshotDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "vigil", Name: "snapshot_duration_seconds"}),
		SnapshotRejected:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "vigil", Name: "snapshot_records_rejected_total"}),
		StoreEvents:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "vigil", Name: "store_events"}),
		StorePoints:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "vigil", Name: "store_points"}),
		ArcBufferSize:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "vigil", Name: "arc_buffer_size"}),
		RelayErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "vigil", Name: "relay_errors_total"}),
		GeoIPLookups:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "vigil", Name: "geoip_lookups_total"}, []string{"result"}),
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions counts web-app connections with a running push loop.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_active_sessions",
			Help: "Number of dashboard sessions with an active push loop",
		},
	)

	// ConnectedSensors counts authenticated sensor channel connections.
	ConnectedSensors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensor_connections",
			Help: "Number of authenticated sensor connections",
		},
	)

	// PushesTotal counts server pushes by kind (values, series).
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_pushes_total",
			Help: "Total number of pushes delivered to dashboard sessions",
		},
		[]string{"kind"},
	)

	// SensorPosts counts posted sample sets by transport and result.
	SensorPosts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_posts_total",
			Help: "Total number of sensor value posts",
		},
		[]string{"transport", "result"},
	)

	// QueryDuration measures aggregate query latency.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregate_query_duration_seconds",
			Help:    "Aggregate query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// StorageErrors counts storage failures that were degraded to "no data".
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Total number of storage errors converted to no data",
		},
		[]string{"query"},
	)

	// RedisOperations counts preference store operations.
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	// ChartRenders measures PNG chart rendering time.
	ChartRenders = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chart_render_duration_seconds",
			Help:    "Chart render duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

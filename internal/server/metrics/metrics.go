// Package metrics defines the server's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// HTTPRequestsTotal counts handled requests by chi route pattern.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marinelog_http_requests_total",
			Help: "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marinelog_http_request_duration_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RecordWritesTotal: op is upsert/delete, outcome is stored, stale,
	// absent, rejected or error.
	RecordWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marinelog_record_writes_total",
			Help: "Record writes by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	PhotoSlotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marinelog_photo_slots_total",
			Help: "Photo upload slot requests, by whether the content was already stored.",
		},
		[]string{"result"},
	)

	RealtimeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marinelog_realtime_subscribers",
			Help: "Open realtime change channels.",
		},
	)
)

// Registry holds every marinelog collector plus the Go and process
// collectors; /metrics serves it.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RecordWritesTotal,
		PhotoSlotsTotal,
		RealtimeSubscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

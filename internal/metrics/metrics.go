package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsReceived   *prometheus.CounterVec
	LocationRequests *prometheus.CounterVec
	LocationSeconds  *prometheus.HistogramVec
	MessagesSent     *prometheus.CounterVec
	InflightRequests prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EventsReceived: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "selene_events_received_total",
			Help: "Total number of inbound device events by type.",
		}, []string{"event"}),
		LocationRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "selene_location_requests_total",
			Help: "Total number of location requests by outcome (resolved or failed).",
		}, []string{"outcome"}),
		LocationSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "selene_location_request_duration_seconds",
			Help:    "Duration of location requests to the provider.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		MessagesSent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "selene_messages_sent_total",
			Help: "Total number of coordinate messages sent to the device by status.",
		}, []string{"status"}),
		InflightRequests: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "selene_inflight_requests",
			Help: "Current number of location requests awaiting a fix or a send result.",
		}),
	}
}

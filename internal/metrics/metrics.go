// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	relayBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_relay_bytes_total",
			Help: "Total number of audio bytes accepted for relaying.",
		},
	)
	relayPacketsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_relay_packets_total",
			Help: "Total number of audio frames accepted for relaying.",
		},
	)
	relayActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_relay_active",
			Help: "Number of connections with audio relay enabled.",
		},
	)
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_ws_connections",
			Help: "Number of active websocket connections.",
		},
	)
	rooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voice_rooms",
			Help: "Number of local rooms.",
		},
	)
	roomEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_room_events_total",
			Help: "Total number of room lifecycle events.",
		},
		[]string{"event"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	federationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_federation_errors_total",
			Help: "Total number of failed federation calls.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		relayBytesTotal,
		relayPacketsTotal,
		relayActive,
		wsConnections,
		rooms,
		roomEventsTotal,
		httpRequestsTotal,
		httpRequestDuration,
		federationErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func AddRelayed(bytes int) {
	relayPacketsTotal.Inc()
	relayBytesTotal.Add(float64(bytes))
}

func SetRelayActive(n int64) { relayActive.Set(float64(n)) }

func IncWSConnections() { wsConnections.Inc() }

func DecWSConnections() { wsConnections.Dec() }

func SetRooms(n int) { rooms.Set(float64(n)) }

func IncRoomEvent(event string) { roomEventsTotal.WithLabelValues(event).Inc() }

func IncFederationError(op string) { federationErrorsTotal.WithLabelValues(op).Inc() }

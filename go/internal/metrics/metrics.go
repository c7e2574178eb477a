// Package metrics collects Prometheus metrics for the gateway and game API calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements gateway.MetricsCollector and clients.RequestObserver
type Collector struct {
	connectionsOpen  *prometheus.GaugeVec
	connectionsTotal *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	broadcasts       *prometheus.CounterVec
	recipients       *prometheus.CounterVec
	staleConnections prometheus.Counter
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainwatch_ws_connections_open",
			Help: "Open WebSocket connections",
		}, []string{"kind"}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainwatch_ws_connections_total",
			Help: "WebSocket connections accepted",
		}, []string{"kind"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainwatch_ws_messages_received_total",
			Help: "Client messages applied, by type",
		}, []string{"type"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainwatch_ws_messages_dropped_total",
			Help: "Client messages dropped, by reason",
		}, []string{"reason"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainwatch_ws_broadcasts_total",
			Help: "Broadcasts sent, by message type",
		}, []string{"type"}),
		recipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainwatch_ws_broadcast_recipients_total",
			Help: "Messages enqueued to connections by broadcasts, by message type",
		}, []string{"type"}),
		staleConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainwatch_ws_stale_connections_total",
			Help: "Deliveries skipped because a connection could not take more messages",
		}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainwatch_upstream_requests_total",
			Help: "Game API requests, by endpoint and status code",
		}, []string{"endpoint", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainwatch_upstream_latency_seconds",
			Help:    "Game API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		c.connectionsOpen,
		c.connectionsTotal,
		c.messagesReceived,
		c.messagesDropped,
		c.broadcasts,
		c.recipients,
		c.staleConnections,
		c.upstreamRequests,
		c.upstreamLatency,
	)

	return c
}

func kind(authenticated bool) string {
	if authenticated {
		return "authenticated"
	}
	return "anonymous"
}

func (c *Collector) ConnectionOpened(authenticated bool) {
	c.connectionsOpen.WithLabelValues(kind(authenticated)).Inc()
	c.connectionsTotal.WithLabelValues(kind(authenticated)).Inc()
}

func (c *Collector) ConnectionClosed(authenticated bool) {
	c.connectionsOpen.WithLabelValues(kind(authenticated)).Dec()
}

func (c *Collector) MessageReceived(msgType string) {
	c.messagesReceived.WithLabelValues(msgType).Inc()
}

func (c *Collector) MessageDropped(reason string) {
	c.messagesDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) MessageBroadcast(msgType string, recipients int) {
	c.broadcasts.WithLabelValues(msgType).Inc()
	c.recipients.WithLabelValues(msgType).Add(float64(recipients))
}

func (c *Collector) StaleConnection() {
	c.staleConnections.Inc()
}

// ObserveRequest records one game API call; status 0 means no response arrived
func (c *Collector) ObserveRequest(endpoint string, status int, duration time.Duration, err error) {
	c.upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

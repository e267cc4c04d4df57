package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authclient"

// Refresh outcomes
const (
	RefreshSucceeded = "success"
	RefreshFailed    = "failure"
	RefreshNoToken   = "no_refresh_token"
)

// Client holds the collectors of one API client. A nil *Client records nothing.
type Client struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshesTotal  *prometheus.CounterVec
	queuedWaiters   prometheus.Gauge
}

// NewClient creates the collectors and registers them with reg when reg is not nil.
func NewClient(reg prometheus.Registerer) *Client {
	c := &Client{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Outbound API requests by method and response status.",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Outbound API request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		refreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Credential refresh attempts by outcome.",
			},
			[]string{"outcome"},
		),
		queuedWaiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_queued_requests",
			Help:      "Requests currently blocked on an in-flight refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.requestsTotal, c.requestDuration, c.refreshesTotal, c.queuedWaiters)
	}
	return c
}

// ObserveRequest records one round trip. status 0 means no response was received.
func (c *Client) ObserveRequest(method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.requestsTotal.WithLabelValues(method, label).Inc()
	c.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Client) Refresh(outcome string) {
	if c == nil {
		return
	}
	c.refreshesTotal.WithLabelValues(outcome).Inc()
}

func (c *Client) WaiterQueued() {
	if c == nil {
		return
	}
	c.queuedWaiters.Inc()
}

func (c *Client) WaiterReleased() {
	if c == nil {
		return
	}
	c.queuedWaiters.Dec()
}

// RefreshCount exposes the refresh counter for one outcome.
func (c *Client) RefreshCount(outcome string) prometheus.Counter {
	return c.refreshesTotal.WithLabelValues(outcome)
}

// RequestCount exposes the request counter for one method and status.
func (c *Client) RequestCount(method string, status int) prometheus.Counter {
	return c.requestsTotal.WithLabelValues(method, strconv.Itoa(status))
}

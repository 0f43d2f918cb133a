// Package metrics exposes Prometheus metrics for the authentication service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the set of metrics the service and transport layers report
type Recorder interface {
	ChallengeIssued()
	AuthAttempt(outcome string)
	EventAppendFailed()
	EventPublishFailed()
	ChallengesPurged(count int64)
	RateLimited()
	HTTPRequest(method, route string, status int)
}

// Collector records metrics in Prometheus
type Collector struct {
	challengesIssued   prometheus.Counter
	authAttempts       *prometheus.CounterVec
	eventAppendFailed  prometheus.Counter
	eventPublishFailed prometheus.Counter
	challengesPurged   prometheus.Counter
	rateLimited        prometheus.Counter
	httpRequests       *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a collector and registers it with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		challengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rola_challenges_issued_total",
			Help: "Number of challenges issued",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rola_auth_attempts_total",
			Help: "Authentication attempts by outcome",
		}, []string{"outcome"}),
		eventAppendFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rola_event_append_failures_total",
			Help: "Authentication events that could not be stored",
		}),
		eventPublishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rola_event_publish_failures_total",
			Help: "Authentication events that could not be published",
		}),
		challengesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rola_challenges_purged_total",
			Help: "Expired challenges removed by the sweeper",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rola_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rola_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status_code"}),
	}

	reg.MustRegister(
		c.challengesIssued,
		c.authAttempts,
		c.eventAppendFailed,
		c.eventPublishFailed,
		c.challengesPurged,
		c.rateLimited,
		c.httpRequests,
	)

	return c
}

func (c *Collector) ChallengeIssued() { c.challengesIssued.Inc() }

func (c *Collector) AuthAttempt(outcome string) { c.authAttempts.WithLabelValues(outcome).Inc() }

func (c *Collector) EventAppendFailed() { c.eventAppendFailed.Inc() }

func (c *Collector) EventPublishFailed() { c.eventPublishFailed.Inc() }

func (c *Collector) ChallengesPurged(count int64) { c.challengesPurged.Add(float64(count)) }

func (c *Collector) RateLimited() { c.rateLimited.Inc() }

func (c *Collector) HTTPRequest(method, route string, status int) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler returns the scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every metric
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) ChallengeIssued() {}
func (Nop) AuthAttempt(string) {}
func (Nop) EventAppendFailed() {}
func (Nop) EventPublishFailed() {}
func (Nop) ChallengesPurged(int64) {}
func (Nop) RateLimited() {}
func (Nop) HTTPRequest(string, string, int) {}

// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the application counters.
type Collector struct {
	generationSuccess prometheus.Counter
	generationFail    prometheus.Counter
	creditsSpent      prometheus.Counter
	creditsGranted    prometheus.Counter
	webhookEvents     *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on the given
// registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generationSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tryon_generation_success_total",
			Help: "Total successful try-on generations",
		}),
		generationFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tryon_generation_fail_total",
			Help: "Total failed try-on generations",
		}),
		creditsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tryon_credits_spent_total",
			Help: "Total credits spent on generations",
		}),
		creditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tryon_credits_granted_total",
			Help: "Total credits granted through billing",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tryon_webhook_events_total",
			Help: "Stripe webhook events by type",
		}, []string{"event_type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tryon_http_status_total",
			Help: "HTTP responses by status code",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.generationSuccess,
		c.generationFail,
		c.creditsSpent,
		c.creditsGranted,
		c.webhookEvents,
		c.httpStatus,
	)

	return c
}

// RecordGeneration records the outcome of a try-on generation and, on
// success, the credits it consumed.
func (c *Collector) RecordGeneration(success bool, cost int) {
	if success {
		c.generationSuccess.Inc()
		c.creditsSpent.Add(float64(cost))
		return
	}
	c.generationFail.Inc()
}

// RecordCreditsGranted records credits granted by a billing event.
func (c *Collector) RecordCreditsGranted(count int) {
	c.creditsGranted.Add(float64(count))
}

// RecordWebhookEvent records a received Stripe webhook event.
func (c *Collector) RecordWebhookEvent(eventType string) {
	c.webhookEvents.WithLabelValues(eventType).Inc()
}

// RecordHTTPStatus records a served HTTP status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookEvents counts inbound release-event deliveries by disposition
	// (pong, ignored, rejected, malformed, triggered, unlinked).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_webhook_events_total",
		Help: "Inbound webhook deliveries by disposition.",
	}, []string{"disposition"})

	// BuildsTriggered counts build records created from accepted releases.
	BuildsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_builds_triggered_total",
		Help: "Build records created from accepted release events.",
	})

	// DispatchFailures counts background jobs that returned an error.
	DispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_dispatch_failures_total",
		Help: "Background jobs that completed with an error.",
	}, []string{"job"})

	// Downloads counts download resolutions by outcome (served, building,
	// failed, missing, unavailable).
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_downloads_total",
		Help: "Download resolutions by outcome.",
	}, []string{"outcome"})

	// RateLimited counts requests rejected by the ingress rate limit.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_rate_limited_total",
		Help: "Requests rejected with 429 by the ingress gate.",
	})
)

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}

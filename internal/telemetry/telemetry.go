package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

// Pipeline counters, labeled by topic
var (
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_events_published_total",
		Help: "Events successfully handed to the broker",
	}, []string{"topic"})

	PublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_publish_failures_total",
		Help: "Publish attempts that failed or were dropped while disconnected",
	}, []string{"topic"})

	MessagesConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_messages_consumed_total",
		Help: "Messages fetched from the broker by a consumer",
	}, []string{"topic"})

	ConsumerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_consumer_errors_total",
		Help: "Messages that failed to parse or persist",
	}, []string{"topic"})
)

func init() {
	registry.MustRegister(
		EventsPublished,
		PublishFailures,
		MessagesConsumed,
		ConsumerErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the metrics registry
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Package metrics holds the Prometheus collectors of the soil advisor.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	AdviceParsed     *prometheus.CounterVec   // by source: json | lines
	Analyses         *prometheus.CounterVec   // by outcome: ok | blocked | error
	UpstreamRequests *prometheus.CounterVec   // by upstream, outcome
	HTTPRequests     *prometheus.CounterVec   // by route, method, code
	HTTPDuration     *prometheus.HistogramVec // by route, method
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		AdviceParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soil_advice_parsed_total",
			Help: "Advice reports normalized, by parser branch.",
		}, []string{"source"}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soil_analyses_total",
			Help: "Soil analysis requests, by outcome.",
		}, []string{"outcome"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soil_upstream_requests_total",
			Help: "Calls to external services, by upstream and outcome.",
		}, []string{"upstream", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soil_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "soil_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(
		m.AdviceParsed, m.Analyses, m.UpstreamRequests, m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Upstream records the outcome of a call to an external service.
func (m *Metrics) Upstream(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(name, outcome).Inc()
}

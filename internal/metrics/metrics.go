// Package metrics exposes Prometheus collectors for the enrichment pipeline.
//
// A single Collector satisfies the observer hooks of the provider, cache and
// cascade packages so one value can be threaded through construction:
//
//   - enricher_provider_calls_total(provider, outcome)
//   - enricher_provider_call_duration_seconds(provider)
//   - enricher_rate_limit_wait_seconds(provider)
//   - enricher_cache_lookups_total(source)
//   - enricher_cascade_strategy_total(strategy)
//   - enricher_credits_charged_total(source)
//   - enricher_outcomes_total(status)
//
// Label values are bounded by configuration (provider ids) or by enums.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/octobees/contact-enricher/internal/entity"
)

const namespace = "enricher"

// Collector owns a private registry so tests and multiple engines do not
// collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	rateLimitWait   *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	strategies      *prometheus.CounterVec
	creditsCharged  *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// New builds and registers every collector, plus the Go and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider calls by outcome (ok, no_result, unavailable, transient, cancelled).",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call latency including polling.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider"}),
		rateLimitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for a provider rate-limit slot.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"provider"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by source (cache_user_duplicate, cache_global, api_fresh).",
		}, []string{"source"}),
		strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_strategy_total",
			Help:      "Cascade strategies selected per dispatch.",
		}, []string{"strategy"}),
		creditsCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_charged_total",
			Help:      "Credits consumed by source of the data.",
		}, []string{"source"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Enrichment outcomes by final status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.providerCalls, c.providerLatency, c.rateLimitWait,
		c.cacheLookups, c.strategies, c.creditsCharged, c.outcomes,
		c.httpRequests, c.httpLatency,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ProviderCall implements provider.Observer.
func (c *Collector) ProviderCall(provider string, outcome entity.FailureKind, elapsed time.Duration) {
	label := string(outcome)
	if outcome == entity.FailureNone {
		label = "ok"
	}
	c.providerCalls.WithLabelValues(provider, label).Inc()
	c.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RateLimitWait implements provider.Observer.
func (c *Collector) RateLimitWait(provider string, waited time.Duration) {
	c.rateLimitWait.WithLabelValues(provider).Observe(waited.Seconds())
}

// CacheLookup implements cache.Observer.
func (c *Collector) CacheLookup(source entity.CacheSource) {
	c.cacheLookups.WithLabelValues(string(source)).Inc()
}

// StrategySelected implements cascade.Observer.
func (c *Collector) StrategySelected(strategy string) {
	c.strategies.WithLabelValues(strategy).Inc()
}

// Outcome records the final status of one contact and the credits it cost.
func (c *Collector) Outcome(o entity.EnrichmentOutcome) {
	c.outcomes.WithLabelValues(string(o.Status)).Inc()
	if o.CreditsCharged > 0 {
		c.creditsCharged.WithLabelValues(string(o.Source)).Add(float64(o.CreditsCharged))
	}
}

// HTTPRequest records one served request.
func (c *Collector) HTTPRequest(method, path string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Package metrics exposes delivery and feed counters in Prometheus format.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "inkwatch"

type Metrics struct {
	reg *prometheus.Registry

	sent        *prometheus.CounterVec
	failed      *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	newEvents   *prometheus.CounterVec
	runs        *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	lastSuccess prometheus.Gauge
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}
	m.sent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Notifications delivered to the webhook",
	}, []string{"feed", "kind"})
	m.failed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_failed_total",
		Help:      "Notifications that ended in a non-retryable error",
	}, []string{"feed", "kind"})
	m.rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_retries_total",
		Help:      "Webhook rate-limit responses that triggered a resubmission",
	}, []string{"feed"})
	m.fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_cache_fallbacks_total",
		Help:      "Runs that used the cached snapshot because the feed was unreachable",
	}, []string{"feed"})
	m.newEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "new_events_total",
		Help:      "Newly appeared feed events per category",
	}, []string{"category"})
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Completed polling runs by status",
	}, []string{"status"})
	m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Time from first send attempt to terminal outcome",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"feed"})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last run without errors",
	})

	m.reg.MustRegister(
		m.sent, m.failed, m.rateLimited, m.fallbacks,
		m.newEvents, m.runs, m.latency, m.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Delivered(feed, kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(feed, kind).Inc()
	m.latency.WithLabelValues(feed).Observe(took.Seconds())
}

func (m *Metrics) Failed(feed, kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(feed, kind).Inc()
	m.latency.WithLabelValues(feed).Observe(took.Seconds())
}

func (m *Metrics) RateLimited(feed string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(feed).Inc()
}

func (m *Metrics) CacheFallback(feed string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(feed).Inc()
}

func (m *Metrics) NewEvents(category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.newEvents.WithLabelValues(category).Add(float64(n))
}

// RunFinished counts a run; a run without errors also moves the last-success gauge.
func (m *Metrics) RunFinished(ok bool, at time.Time) {
	if m == nil {
		return
	}
	if !ok {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	m.lastSuccess.Set(float64(at.Unix()))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Push sends the current values to a Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || strings.TrimSpace(url) == "" {
		return nil
	}
	return push.New(url, job).Gatherer(m.reg).PushContext(ctx)
}

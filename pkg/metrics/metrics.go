// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixed to every gateway metric
const Namespace = "mcp_gateway"

// Recorder receives the gateway observations
type Recorder interface {
	ObserveRequest(method string, status int, duration time.Duration)
	ObserveAuthDecision(outcome string)
	IncRateLimited()
	ObserveUpstream(status int, duration time.Duration)
}

// Noop discards every observation
type Noop struct{}

func (Noop) ObserveRequest(string, int, time.Duration) {}
func (Noop) ObserveAuthDecision(string)                {}
func (Noop) IncRateLimited()                           {}
func (Noop) ObserveUpstream(int, time.Duration)        {}

// Prom records the gateway observations as prometheus collectors held
// in a registry owned by the instance
type Prom struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	decisions   *prometheus.CounterVec
	rateLimited prometheus.Counter
	upstream    *prometheus.HistogramVec
}

// NewProm creates the collectors on a fresh registry, process and go
// runtime collectors are included
func NewProm() *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/status",
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "auth_decisions_total",
			Help:      "Authentication and authorization outcomes",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream call latency by status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	p.registry.MustRegister(
		p.requests,
		p.latency,
		p.decisions,
		p.rateLimited,
		p.upstream,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) ObserveRequest(method string, status int, duration time.Duration) {
	p.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	p.latency.WithLabelValues(method).Observe(duration.Seconds())
}

func (p *Prom) ObserveAuthDecision(outcome string) {
	p.decisions.WithLabelValues(outcome).Inc()
}

func (p *Prom) IncRateLimited() {
	p.rateLimited.Inc()
}

// ObserveUpstream records an upstream call, a status of zero marks
// a call that produced no response
func (p *Prom) ObserveUpstream(status int, duration time.Duration) {
	label := "unavailable"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	p.upstream.WithLabelValues(label).Observe(duration.Seconds())
}

// Registry returns the registry holding the collectors
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the collectors in the prometheus exposition format
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

var (
	_ Recorder = Noop{}
	_ Recorder = (*Prom)(nil)
)

// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics exposes Prometheus instrumentation for the API.

Two families are collected:

  - HTTP traffic: in-flight gauge, request counter and latency histogram,
    labelled by chi route pattern so path parameters do not explode cardinality.
  - Auth outcomes: a counter of sign-in and refresh results by outcome.

A [Registry] owns its own [prometheus.Registry], so tests can build as many as
they like without colliding on the global default registerer.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gatekeeper"

// Registry bundles the collectors and the registry they are registered on.
type Registry struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	authOutcomes        *prometheus.CounterVec
}

// New creates a registry with HTTP, auth, Go runtime and process collectors.
func New() *Registry {
	metrics := &Registry{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Sign-in and refresh attempts by outcome.",
		}, []string{"operation", "outcome"}),
	}

	metrics.registry.MustRegister(
		metrics.httpInFlight,
		metrics.httpRequestsTotal,
		metrics.httpRequestDuration,
		metrics.authOutcomes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return metrics
}

// Handler serves the registry in the Prometheus exposition format.
func (metrics *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{Registry: metrics.registry})
}

// ObserveAuth counts one sign-in or refresh outcome.
func (metrics *Registry) ObserveAuth(operation, outcome string) {
	metrics.authOutcomes.WithLabelValues(operation, outcome).Inc()
}

// AuthOutcomes exposes the auth counter for assertions in tests.
func (metrics *Registry) AuthOutcomes() *prometheus.CounterVec {
	return metrics.authOutcomes
}

// Instrument measures request count, latency and concurrency.
func (metrics *Registry) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		metrics.httpInFlight.Inc()
		defer metrics.httpInFlight.Dec()

		start := time.Now()
		recorder := &statusWriter{ResponseWriter: writer, code: http.StatusOK}

		next.ServeHTTP(recorder, request)

		labels := []string{request.Method, routePattern(request), strconv.Itoa(recorder.code)}
		metrics.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		metrics.httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}

// routePattern returns the matched chi pattern, read after routing completed.
func routePattern(request *http.Request) string {
	if routeCtx := chi.RouteContext(request.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

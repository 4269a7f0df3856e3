// Package telemetry exposes the process metrics: firing outcomes per job
// kind, oracle request counts and latency, deliveries per channel, and
// store failures. All methods are nil-safe so components can run without
// a collector wired in (tests mostly do).
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Telemetry struct {
	registry *prometheus.Registry

	jobFirings     *prometheus.CounterVec
	oracleRequests *prometheus.CounterVec
	oracleLatency  prometheus.Histogram
	notifications  *prometheus.CounterVec
	storeErrors    prometheus.Counter
}

// New builds a Telemetry with its own registry, including the standard Go
// and process collectors.
func New() *Telemetry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Telemetry{
		registry: reg,
		jobFirings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_job_firings_total",
			Help: "Job firings by kind and outcome.",
		}, []string{"kind", "outcome"}),
		oracleRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_oracle_requests_total",
			Help: "Oracle calls by result status.",
		}, []string{"status"}),
		oracleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "herald_oracle_latency_seconds",
			Help:    "Oracle call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "herald_notifications_total",
			Help: "Delivered notifications by kind and channel.",
		}, []string{"kind", "channel"}),
		storeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "herald_store_errors_total",
			Help: "Store operations that failed as unavailable.",
		}),
	}
}

// Handler serves this registry; mounted at /metrics by the server.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *Telemetry) RecordFiring(kind, outcome string) {
	if t == nil {
		return
	}
	t.jobFirings.WithLabelValues(kind, outcome).Inc()
}

func (t *Telemetry) RecordOracle(err error, started time.Time) {
	if t == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.oracleRequests.WithLabelValues(status).Inc()
	t.oracleLatency.Observe(time.Since(started).Seconds())
}

func (t *Telemetry) RecordNotification(kind, channel string) {
	if t == nil {
		return
	}
	t.notifications.WithLabelValues(kind, channel).Inc()
}

func (t *Telemetry) RecordStoreError() {
	if t == nil {
		return
	}
	t.storeErrors.Inc()
}

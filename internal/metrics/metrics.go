// Package metrics exposes Prometheus counters for the reminder pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// User outcomes of a reminder pass.
const (
	OutcomeSkipped     = "skipped"
	OutcomeAlreadyDone = "already_done"
	OutcomeProcessed   = "processed"
	OutcomeFailed      = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	Passes             prometheus.Counter
	PassDuration       prometheus.Histogram
	Users              *prometheus.CounterVec
	DigestsEnqueued    prometheus.Counter
	MessagesDispatched *prometheus.CounterVec
	NotificationsShown prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Passes: f.NewCounter(prometheus.CounterOpts{
			Name: "luach_reminder_passes_total",
			Help: "Reminder passes started.",
		}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "luach_reminder_pass_duration_seconds",
			Help:    "Duration of reminder passes.",
			Buckets: prometheus.DefBuckets,
		}),
		Users: f.NewCounterVec(prometheus.CounterOpts{
			Name: "luach_reminder_users_total",
			Help: "Users visited by reminder passes, by outcome.",
		}, []string{"outcome"}),
		DigestsEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "luach_digests_enqueued_total",
			Help: "Digest messages written to the outbox.",
		}),
		MessagesDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "luach_messages_dispatched_total",
			Help: "Outbox delivery attempts, by result.",
		}, []string{"result"}),
		NotificationsShown: f.NewCounter(prometheus.CounterOpts{
			Name: "luach_local_notifications_total",
			Help: "On-device notifications shown.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

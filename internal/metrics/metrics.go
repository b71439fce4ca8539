// Package metrics exposes refresh health to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	ObserveFetch(view string, duration time.Duration, err error)
	IncStaleServed(view string)
	SetRecordsFetched(view string, count int)
	SetSinceLastFeeding(elapsed time.Duration)
	Handler() http.Handler
}

type promRecorder struct {
	registry         *prometheus.Registry
	fetchTotal       *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	staleServed      *prometheus.CounterVec
	recordsFetched   *prometheus.GaugeVec
	sinceLastFeeding prometheus.Gauge
}

// NewPrometheus registers the feedtrack series on a private registry.
func NewPrometheus() Recorder {
	r := &promRecorder{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedtrack_fetch_total",
			Help: "Record source fetches by view and outcome",
		}, []string{"view", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedtrack_fetch_duration_seconds",
			Help:    "Record source fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
		staleServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedtrack_stale_served_total",
			Help: "Refreshes answered from the last good fetch",
		}, []string{"view"}),
		recordsFetched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feedtrack_records",
			Help: "Rows returned by the latest fetch",
		}, []string{"view"}),
		sinceLastFeeding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feedtrack_seconds_since_last_feeding",
			Help: "Seconds elapsed since the most recent feeding",
		}),
	}
	r.registry.MustRegister(
		r.fetchTotal,
		r.fetchDuration,
		r.staleServed,
		r.recordsFetched,
		r.sinceLastFeeding,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *promRecorder) ObserveFetch(view string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.fetchTotal.WithLabelValues(view, outcome).Inc()
	r.fetchDuration.WithLabelValues(view).Observe(duration.Seconds())
}

func (r *promRecorder) IncStaleServed(view string) {
	r.staleServed.WithLabelValues(view).Inc()
}

func (r *promRecorder) SetRecordsFetched(view string, count int) {
	r.recordsFetched.WithLabelValues(view).Set(float64(count))
}

func (r *promRecorder) SetSinceLastFeeding(elapsed time.Duration) {
	r.sinceLastFeeding.Set(elapsed.Seconds())
}

func (r *promRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Nop discards everything.
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string, time.Duration, error) {}
func (nopRecorder) IncStaleServed(string)                     {}
func (nopRecorder) SetRecordsFetched(string, int)             {}
func (nopRecorder) SetSinceLastFeeding(time.Duration)         {}
func (nopRecorder) Handler() http.Handler                     { return http.NotFoundHandler() }

// Package prom records gateway metrics in a Prometheus registry.
//
// Metrics:
//   - npcgateway_decisions_total{status,reason}
//   - npcgateway_backend_duration_seconds
//   - npcgateway_persist_total{result}
//   - npcgateway_broadcast_sends_total{result}
//   - npcgateway_observers
package prom

import (
	"net/http"
	"time"

	"npcgateway/internal/domain/decision"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "npcgateway"

type Recorder struct {
	registry *prometheus.Registry

	decisions *prometheus.CounterVec
	backend   prometheus.Histogram
	persist   *prometheus.CounterVec
	sends     *prometheus.CounterVec
	observers prometheus.Gauge
}

// NewRecorder registers the gateway metrics on a fresh registry, so several
// recorders can coexist in one process.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decision cycles by outcome status and failure reason.",
		}, []string{"status", "reason"}),
		backend: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_duration_seconds",
			Help:      "Inference backend call duration, including timeouts.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 10, 15, 30},
		}),
		persist: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_total",
			Help:      "Decision record writes by result.",
		}, []string{"result"}),
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_sends_total",
			Help:      "Observer sends by result.",
		}, []string{"result"}),
		observers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Currently registered observer connections.",
		}),
	}
}

func (r *Recorder) RecordOutcome(status decision.Status, reason decision.Reason) {
	label := string(reason)
	if label == "" {
		label = "none"
	}
	r.decisions.WithLabelValues(string(status), label).Inc()
}

func (r *Recorder) RecordBackendLatency(d time.Duration) {
	r.backend.Observe(d.Seconds())
}

func (r *Recorder) RecordPersist(err error) {
	if err != nil {
		r.persist.WithLabelValues("error").Inc()
		return
	}
	r.persist.WithLabelValues("ok").Inc()
}

func (r *Recorder) RecordBroadcast(delivered, failed int) {
	r.sends.WithLabelValues("ok").Add(float64(delivered))
	r.sends.WithLabelValues("error").Add(float64(failed))
}

func (r *Recorder) RecordObservers(n int) {
	r.observers.Set(float64(n))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingrea/modgraph/internal/workflow"
	"github.com/kingrea/modgraph/internal/workflow/view"
)

// Recorder tracks resolution passes on its own registry so several engines
// (or tests) never collide on metric names.
type Recorder struct {
	registry *prometheus.Registry

	passTotal     *prometheus.CounterVec
	failureTotal  *prometheus.CounterVec
	passDuration  prometheus.Histogram
	generation    prometheus.Gauge
	providers     *prometheus.GaugeVec
	transfers     *prometheus.GaugeVec
	resetTotal    prometheus.Counter
	lastResetSize prometheus.Gauge
}

// NewRecorder registers the resolution metrics plus the Go and process
// collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		passTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modgraph_resolution_total",
				Help: "Number of resolution passes by outcome.",
			},
			[]string{"outcome"},
		),
		failureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modgraph_resolution_failure_total",
				Help: "Number of failed resolution passes by error kind.",
			},
			[]string{"kind"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modgraph_resolution_duration_seconds",
				Help:    "Time taken by one resolution pass.",
				Buckets: prometheus.DefBuckets,
			},
		),
		generation: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modgraph_snapshot_generation",
				Help: "Generation of the currently published snapshot.",
			},
		),
		providers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modgraph_thread_providers",
				Help: "Number of ordered providers per thread in the current snapshot.",
			},
			[]string{"thread"},
		),
		transfers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modgraph_thread_received_representations",
				Help: "Number of representations each thread receives from other threads.",
			},
			[]string{"thread"},
		),
		resetTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "modgraph_reset_representations_total",
				Help: "Total number of representations reset across all passes.",
			},
		),
		lastResetSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modgraph_last_reset_representations",
				Help: "Number of representations reset by the last successful pass.",
			},
		),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.passTotal,
		r.failureTotal,
		r.passDuration,
		r.generation,
		r.providers,
		r.transfers,
		r.resetTotal,
		r.lastResetSize,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// PassSucceeded records a published snapshot.
func (r *Recorder) PassSucceeded(snap *view.Snapshot, elapsed time.Duration) {
	if r == nil || snap == nil {
		return
	}
	r.passTotal.WithLabelValues("success").Inc()
	r.passDuration.Observe(elapsed.Seconds())
	r.generation.Set(float64(snap.Generation))
	r.providers.Reset()
	r.transfers.Reset()
	for _, v := range snap.Threads {
		r.providers.WithLabelValues(v.Thread).Set(float64(len(v.Providers)))
		received := 0
		for _, list := range v.Received {
			received += len(list)
		}
		r.transfers.WithLabelValues(v.Thread).Set(float64(received))
	}
	r.resetTotal.Add(float64(len(snap.Reset)))
	r.lastResetSize.Set(float64(len(snap.Reset)))
}

// PassFailed records a rejected configuration.
func (r *Recorder) PassFailed(err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.passTotal.WithLabelValues("failure").Inc()
	r.passDuration.Observe(elapsed.Seconds())
	r.failureTotal.WithLabelValues(KindOf(err)).Inc()
}

// KindOf labels err by its resolution kind, or "other" for I/O and parse
// failures.
func KindOf(err error) string {
	var resErr *workflow.Error
	if errors.As(err, &resErr) {
		return string(resErr.Kind)
	}
	var kind workflow.Kind
	if errors.As(err, &kind) {
		return string(kind)
	}
	return "other"
}

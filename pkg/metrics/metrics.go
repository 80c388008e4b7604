// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkshort"

// Failure stages of best-effort click recording.
const (
	StageCounter = "counter"
	StageEvent   = "event"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	registry          *prometheus.Registry
	linksCreated      prometheus.Counter
	allocationRetries prometheus.Counter
	redirects         *prometheus.CounterVec
	analyticsFailures *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		linksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Short links created.",
		}),
		allocationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_retries_total",
			Help:      "Random codes discarded because they were already taken.",
		}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect lookups by result.",
		}, []string{"result"}),
		analyticsFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_failures_total",
			Help:      "Click recording failures swallowed by the redirect path.",
		}, []string{"stage"}),
	}
	r.registry.MustRegister(
		r.linksCreated,
		r.allocationRetries,
		r.redirects,
		r.analyticsFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func (r *Recorder) LinkCreated() {
	if r != nil {
		r.linksCreated.Inc()
	}
}

func (r *Recorder) AllocationRetry() {
	if r != nil {
		r.allocationRetries.Inc()
	}
}

func (r *Recorder) Redirect(found bool) {
	if r == nil {
		return
	}
	result := "found"
	if !found {
		result = "not_found"
	}
	r.redirects.WithLabelValues(result).Inc()
}

func (r *Recorder) AnalyticsFailure(stage string) {
	if r != nil {
		r.analyticsFailures.WithLabelValues(stage).Inc()
	}
}

// Package metrics records fetch outcomes as Prometheus metrics and exports them
// in the text exposition format for the node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/glorpus-work/imgfetch/pkg/errors"
	"github.com/glorpus-work/imgfetch/pkg/fetch"
	"github.com/glorpus-work/imgfetch/pkg/fsutil"
)

const namespace = "imgfetch"

// Metrics holds the collectors of one process. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     prometheus.Histogram
	inFlight prometheus.Gauge
}

// New creates and registers the fetch collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.results = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Fetched URLs by outcome and error kind.",
		},
		[]string{"outcome", "kind"},
	)
	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching one URL.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	// 1KB .. 1GB
	m.size = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "image_size_bytes",
		Help:      "Size of downloaded images.",
		Buckets:   prometheus.ExponentialBuckets(1024, 10, 7),
	})
	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fetches_in_flight",
		Help:      "URLs currently being fetched.",
	})

	m.registry.MustRegister(m.results, m.duration, m.size, m.inFlight)
	return m
}

// Start marks one fetch as in flight.
func (m *Metrics) Start() {
	m.inFlight.Inc()
}

// Observe records a finished fetch.
func (m *Metrics) Observe(res fetch.Result) {
	m.inFlight.Dec()
	m.results.WithLabelValues(string(res.Outcome), string(res.Kind())).Inc()
	m.duration.WithLabelValues(string(res.Outcome)).Observe(res.Duration.Seconds())
	if res.Outcome == fetch.Saved || res.Outcome == fetch.Skipped {
		m.size.Observe(float64(res.Size))
	}
}

// WriteFile writes all metrics to path atomically.
func (m *Metrics) WriteFile(path string) error {
	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrapf(err, "could not create metrics directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "could not write metrics to %s", path)
	}
	return nil
}

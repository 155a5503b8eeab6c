// Package metrics records per-run purchase metrics. A run is a short-lived
// process, so metrics are written once to a node_exporter textfile instead of
// being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Run struct {
	registry *prometheus.Registry

	domains       *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	gatewayErrors *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

func NewRun() *Run {
	return newRunWithRegistry(prometheus.NewRegistry())
}

func newRunWithRegistry(reg *prometheus.Registry) *Run {
	return &Run{
		registry: reg,
		domains: registerCounterVec(reg, prometheus.CounterOpts{
			Name: "dotgrab_domains_processed_total",
			Help: "Watch-list entries processed, by terminal status",
		}, []string{"status"}),
		stepDuration: registerHistogramVec(reg, prometheus.HistogramOpts{
			Name:    "dotgrab_step_duration_seconds",
			Help:    "Duration of individual purchase workflow steps",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"step"}),
		gatewayErrors: registerCounterVec(reg, prometheus.CounterOpts{
			Name: "dotgrab_gateway_errors_total",
			Help: "Failed registrar calls, by workflow step",
		}, []string{"step"}),
		lastRun: registerGauge(reg, prometheus.GaugeOpts{
			Name: "dotgrab_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(c); err != nil {
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return c
}

func registerHistogramVec(reg prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := reg.Register(h); err != nil {
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return h
}

func registerGauge(reg prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	if err := reg.Register(g); err != nil {
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return g
}

func (m *Run) RecordDomain(status string) {
	m.domains.WithLabelValues(status).Inc()
}

func (m *Run) RecordStep(step string, d time.Duration, err error) {
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	if err != nil {
		m.gatewayErrors.WithLabelValues(step).Inc()
	}
}

func (m *Run) Finish(at time.Time) {
	m.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes all collected metrics in the text
// exposition format.
func (m *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Run) Registry() *prometheus.Registry { return m.registry }

// Package metrics exposes Prometheus counters for builds, uploads and runs.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
)

const metricNamespace = "buildbridge"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	TargetBuilds  *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec
	Uploads       *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	RunningRuns   prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TargetBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "target_builds_total",
			Help:      "Target builds by target and result",
		}, []string{"target", "result"}),
		BuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "target_build_seconds",
			Help:      "Wall time of a single target build",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"target"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "uploads_total",
			Help:      "Artifact uploads by target and result",
		}, []string{"target", "result"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "runs_total",
			Help:      "Finished runs by status",
		}, []string{"status"}),
		RunningRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "running_runs",
			Help:      "Runs currently in progress",
		}),
	}
	m.registry.MustRegister(m.TargetBuilds, m.BuildDuration, m.Uploads, m.Runs, m.RunningRuns)
	return m
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveBuild records one target build.
func (m *Metrics) ObserveBuild(target string, success bool, duration time.Duration) {
	m.TargetBuilds.WithLabelValues(target, result(success)).Inc()
	m.BuildDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// ObserveUpload records one target upload.
func (m *Metrics) ObserveUpload(target string, success bool) {
	m.Uploads.WithLabelValues(target, result(success)).Inc()
}

// RunStarted marks a run as in progress.
func (m *Metrics) RunStarted() {
	m.RunningRuns.Inc()
}

// RunFinished records the final status of a run started with RunStarted.
func (m *Metrics) RunFinished(status v1.RunStatus) {
	m.RunningRuns.Dec()
	m.Runs.WithLabelValues(string(status)).Inc()
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the current values to a Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}

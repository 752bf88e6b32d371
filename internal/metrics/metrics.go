// Package metrics exposes benchmark and HTTP metrics on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "installbench"

// Collector holds every installbench metric. It uses a custom registry so
// tests and multiple instances never share global state.
type Collector struct {
	Registry *prometheus.Registry

	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	PackagesInstalled *prometheus.GaugeVec
	ToolSetupTotal    *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_total",
			Help:      "Benchmark runs by tool, scenario and outcome.",
		}, []string{"tool", "scenario", "status"}),

		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Install duration of successful runs in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		}, []string{"tool", "scenario"}),

		PackagesInstalled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packages_installed",
			Help:      "Packages counted after the latest successful run.",
		}, []string{"tool", "scenario"}),

		ToolSetupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_setup_total",
			Help:      "Tool installations into the sandbox by outcome.",
		}, []string{"tool", "status"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		c.RunsTotal,
		c.RunDuration,
		c.PackagesInstalled,
		c.ToolSetupTotal,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	)
	return c
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveRun implements bench.Recorder.
func (c *Collector) ObserveRun(r bench.TestResult) {
	st := status(r.Success)
	if !r.Success && r.Error == bench.ErrTimeout {
		st = "timeout"
	}
	c.RunsTotal.WithLabelValues(r.Tool, r.Scenario, st).Inc()
	if !r.Success {
		return
	}
	c.RunDuration.WithLabelValues(r.Tool, r.Scenario).Observe(float64(r.DurationMs) / 1000)
	c.PackagesInstalled.WithLabelValues(r.Tool, r.Scenario).Set(float64(r.PackageCount))
}

// ObserveSetup implements bench.Recorder.
func (c *Collector) ObserveSetup(tool string, ok bool) {
	c.ToolSetupTotal.WithLabelValues(tool, status(ok)).Inc()
}

// ObserveHTTP records one served request. path should be the route pattern,
// not the raw URL, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, path string, code int, d time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

package gate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts gate outcomes on a registry owned by one Pipeline.
type Metrics struct {
	registry     *prometheus.Registry
	gateResults  *prometheus.CounterVec
	gateDuration *prometheus.HistogramVec
	pipelineRuns *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gateResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kdd_gate_results_total",
			Help: "Gate results by gate number, name and status.",
		}, []string{"gate", "name", "status"}),
		gateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kdd_gate_duration_seconds",
			Help:    "Gate execution time.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"gate"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kdd_pipeline_runs_total",
			Help: "Pipeline runs by overall status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.gateResults, m.gateDuration, m.pipelineRuns)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeGate(r Result) {
	gate := strconv.Itoa(r.Gate)
	m.gateResults.WithLabelValues(gate, r.Name, string(r.Status)).Inc()
	m.gateDuration.WithLabelValues(gate).Observe(float64(r.DurationMs) / 1000)
}

func (m *Metrics) observePipeline(status Status) {
	m.pipelineRuns.WithLabelValues(string(status)).Inc()
}

// WriteTextfile writes every metric in the Prometheus text format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

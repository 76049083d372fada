package report

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are boring counters and two gauges. Every value can be explained
// by the log lines of the current run.
type Metrics struct {
	registry *prometheus.Registry

	hostnameChanges  prometheus.Counter
	artifactsPurged  prometheus.Counter
	configReconciles *prometheus.CounterVec
	signalsForwarded prometheus.Counter
	childUp          prometheus.Gauge
	childExitCode    prometheus.Gauge

	running atomic.Bool
}

var globalMetrics = NewMetrics()

// Global returns the process-wide metrics instance.
func Global() *Metrics {
	return globalMetrics
}

// NewMetrics creates a metrics set on its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		hostnameChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshrender_hostname_changes_total",
			Help: "Runs that found a new or missing hostname record",
		}),
		artifactsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshrender_artifacts_purged_total",
			Help: "Certificate files removed because the hostname changed",
		}),
		configReconciles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshrender_config_reconciles_total",
				Help: "Config reconciliations by mode",
			},
			[]string{"mode"},
		),
		signalsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshrender_signals_forwarded_total",
			Help: "Interrupts forwarded to the child process",
		}),
		childUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshrender_child_up",
			Help: "1 while the child process is running",
		}),
		childExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshrender_child_exit_code",
			Help: "Exit code of the last child process",
		}),
	}

	m.registry.MustRegister(
		m.hostnameChanges,
		m.artifactsPurged,
		m.configReconciles,
		m.signalsForwarded,
		m.childUp,
		m.childExitCode,
	)
	return m
}

// Registry exposes the registry for the metrics server.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordDetection counts a hostname change and the files it purged.
func (m *Metrics) RecordDetection(changed bool, purged int) {
	if !changed {
		return
	}
	m.hostnameChanges.Inc()
	m.artifactsPurged.Add(float64(purged))
}

// RecordReconcile counts one reconciliation in the given mode.
func (m *Metrics) RecordReconcile(mode string) {
	m.configReconciles.WithLabelValues(mode).Inc()
}

// ChildStarted marks the child as running.
func (m *Metrics) ChildStarted() {
	m.running.Store(true)
	m.childUp.Set(1)
}

// SignalForwarded counts an interrupt sent to the child.
func (m *Metrics) SignalForwarded() {
	m.signalsForwarded.Inc()
}

// RecordResult updates the child gauges from a finished run.
func (m *Metrics) RecordResult(r *Result) {
	m.running.Store(false)
	m.childUp.Set(0)
	m.childExitCode.Set(float64(r.ExitCode))
}

// ChildUp reports whether the child is running.
func (m *Metrics) ChildUp() bool {
	return m.running.Load()
}

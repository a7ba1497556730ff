package observability

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the daemon and implements
// simcore.SimMetrics.
type Metrics struct {
	// Simulation lifecycle metrics
	SimulationsTotal    *prometheus.CounterVec
	SimulationsActive   prometheus.Gauge
	SimulationDuration  prometheus.Histogram

	// Engine metrics
	PacketsForwardedTotal prometheus.Counter
	ChunksCompletedTotal  *prometheus.CounterVec
	PortUtilizationGauge  *prometheus.GaugeVec

	// Admission control metrics
	AdmissionRejectedTotal prometheus.Counter

	// Storage metrics
	ResultCacheHitsTotal    prometheus.Counter
	ResultCacheMissesTotal  prometheus.Counter
	PersistOperationsTotal  *prometheus.CounterVec
	PersistOperationLatency prometheus.Histogram

	activeSimulations int64
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		SimulationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cclsim_simulations_total",
				Help: "Total simulations run, by outcome",
			},
			[]string{"status"},
		),

		SimulationsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cclsim_simulations_active",
				Help: "Currently running simulations",
			},
		),

		SimulationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cclsim_simulation_duration_seconds",
				Help:    "Wall-clock time to complete a submitted simulation run",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),

		PacketsForwardedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cclsim_packets_forwarded_total",
				Help: "Total packets forwarded across all simulations",
			},
		),

		ChunksCompletedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cclsim_chunks_completed_total",
				Help: "Chunks that reached full ownership at a node",
			},
			[]string{"node"},
		),

		PortUtilizationGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cclsim_port_utilization",
				Help: "Busy_time/elapsed_time for a port, observed at run end",
			},
			[]string{"owner", "peer"},
		),

		AdmissionRejectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cclsim_admission_rejected_total",
				Help: "Submissions rejected by the admission-control token bucket",
			},
		),

		ResultCacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cclsim_result_cache_hits_total",
				Help: "Scenario submissions served from the result cache",
			},
		),

		ResultCacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cclsim_result_cache_misses_total",
				Help: "Scenario submissions that required a fresh run",
			},
		),

		PersistOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cclsim_persist_operations_total",
				Help: "Persistent store operation count",
			},
			[]string{"operation", "result"},
		),

		PersistOperationLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cclsim_persist_operation_duration_seconds",
				Help:    "Persistent store operation latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
	}

	return m
}

// RecordSimulationStart increments active-simulation counters.
func (m *Metrics) RecordSimulationStart() {
	atomic.AddInt64(&m.activeSimulations, 1)
	m.SimulationsActive.Set(float64(atomic.LoadInt64(&m.activeSimulations)))
}

// RecordSimulationComplete records simulation completion metrics.
func (m *Metrics) RecordSimulationComplete(success bool, durationSeconds float64) {
	atomic.AddInt64(&m.activeSimulations, -1)
	m.SimulationsActive.Set(float64(atomic.LoadInt64(&m.activeSimulations)))

	status := "success"
	if !success {
		status = "failure"
	}
	m.SimulationsTotal.WithLabelValues(status).Inc()
	m.SimulationDuration.Observe(durationSeconds)
}

// PacketsForwarded implements simcore.SimMetrics.
func (m *Metrics) PacketsForwarded(count int) {
	m.PacketsForwardedTotal.Add(float64(count))
}

// ChunkCompleted implements simcore.SimMetrics.
func (m *Metrics) ChunkCompleted(node string) {
	m.ChunksCompletedTotal.WithLabelValues(node).Inc()
}

// PortUtilization implements simcore.SimMetrics.
func (m *Metrics) PortUtilization(owner, peer string, utilization float64) {
	m.PortUtilizationGauge.WithLabelValues(owner, peer).Set(utilization)
}

// RecordPersistOperation records a persistence operation outcome.
func (m *Metrics) RecordPersistOperation(operation string, success bool, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.PersistOperationsTotal.WithLabelValues(operation, result).Inc()
	m.PersistOperationLatency.Observe(durationSeconds)
}

// RecordCacheLookup records a ResultCache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.ResultCacheHitsTotal.Inc()
	} else {
		m.ResultCacheMissesTotal.Inc()
	}
}

// RecordAdmissionRejected records a submission rejected by admission control.
func (m *Metrics) RecordAdmissionRejected() {
	m.AdmissionRejectedTotal.Inc()
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

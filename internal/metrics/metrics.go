package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects build counters for one process. Batch runs publish them
// through WriteTextfile rather than a scrape endpoint.
type Metrics struct {
	registry      *prometheus.Registry
	rebuilds      *prometheus.CounterVec
	layers        *prometheus.CounterVec
	joinMisses    *prometheus.CounterVec
	artifactBytes *prometheus.GaugeVec
	runDuration   prometheus.Gauge
	lastSuccess   prometheus.Gauge
	runInfo       *prometheus.GaugeVec
}

// New creates a fresh Metrics registry with build metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	rebuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atlas",
		Name:      "rebuilds_total",
		Help:      "Freshness decisions for derived artifacts by outcome",
	}, []string{"artifact", "outcome"})

	layers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atlas",
		Name:      "layers_compiled_total",
		Help:      "Layers compiled per family",
	}, []string{"family"})

	joinMisses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atlas",
		Name:      "join_misses_total",
		Help:      "Rows that found no partner in a join",
	}, []string{"join"})

	artifactBytes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "atlas",
		Name:      "artifact_bytes",
		Help:      "Size of the last written view artifact",
	}, []string{"view"})

	runDuration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atlas",
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last build",
	})

	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atlas",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful build",
	})

	runInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "atlas",
		Name:      "run_info",
		Help:      "Identity of the last build",
	}, []string{"run_id"})

	registry.MustRegister(
		rebuilds,
		layers,
		joinMisses,
		artifactBytes,
		runDuration,
		lastSuccess,
		runInfo,
	)

	return &Metrics{
		registry:      registry,
		rebuilds:      rebuilds,
		layers:        layers,
		joinMisses:    joinMisses,
		artifactBytes: artifactBytes,
		runDuration:   runDuration,
		lastSuccess:   lastSuccess,
		runInfo:       runInfo,
	}
}

// Outcome labels of atlas_rebuilds_total.
const (
	OutcomeRebuilt   = "rebuilt"
	OutcomeUnchanged = "unchanged"
)

// ObserveRebuild records a freshness decision for a derived artifact.
func (m *Metrics) ObserveRebuild(artifact string, rebuilt bool) {
	if m == nil {
		return
	}
	outcome := OutcomeUnchanged
	if rebuilt {
		outcome = OutcomeRebuilt
	}
	m.rebuilds.WithLabelValues(artifact, outcome).Inc()
}

func (m *Metrics) AddLayers(family string, n int) {
	if m == nil {
		return
	}
	m.layers.WithLabelValues(family).Add(float64(n))
}

func (m *Metrics) AddJoinMisses(join string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.joinMisses.WithLabelValues(join).Add(float64(n))
}

func (m *Metrics) ObserveArtifact(view string, size int) {
	if m == nil {
		return
	}
	m.artifactBytes.WithLabelValues(view).Set(float64(size))
}

// ObserveRun marks a completed build.
func (m *Metrics) ObserveRun(runID string, duration time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.runDuration.Set(duration.Seconds())
	m.lastSuccess.Set(float64(finished.Unix()))
	m.runInfo.Reset()
	m.runInfo.WithLabelValues(runID).Set(1)
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// WriteTextfile writes the registry atomically in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Gatherer())
}

package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/systems"
)

// Metrics bundles Prometheus metrics for a drift run.
type Metrics struct {
	gatherer prometheus.Gatherer

	Steps         prometheus.Counter
	StepDurations prometheus.Histogram
	Seeded        *prometheus.CounterVec
	Strandings    prometheus.Counter
	MissingData   prometheus.Counter
	Particles     *prometheus.GaugeVec
	SimTime       prometheus.Gauge
}

// NewMetrics registers run metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leeway_steps_total",
		Help: "Number of completed simulation steps.",
	}), "leeway_steps_total")
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leeway_step_duration_seconds",
		Help:    "Wall-clock duration of one simulation step.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "leeway_step_duration_seconds")
	if err != nil {
		return nil, err
	}
	seeded, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leeway_particles_seeded_total",
		Help: "Particles seeded, labeled by object type.",
	}, []string{"object_type"}), "leeway_particles_seeded_total")
	if err != nil {
		return nil, err
	}
	strandings, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leeway_strandings_total",
		Help: "Particles stranded on land.",
	}), "leeway_strandings_total")
	if err != nil {
		return nil, err
	}
	missing, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leeway_missing_data_total",
		Help: "Particle steps skipped for lack of environment data.",
	}), "leeway_missing_data_total")
	if err != nil {
		return nil, err
	}
	particles, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "leeway_particles",
		Help: "Current number of particles, labeled by status.",
	}, []string{"status"}), "leeway_particles")
	if err != nil {
		return nil, err
	}
	simTime, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leeway_simulation_time_seconds",
		Help: "Simulation clock as Unix seconds.",
	}), "leeway_simulation_time_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:      gatherer,
		Steps:         steps,
		StepDurations: durations,
		Seeded:        seeded,
		Strandings:    strandings,
		MissingData:   missing,
		Particles:     particles,
		SimTime:       simTime,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordSeed counts n particles seeded with objectType.
func (m *Metrics) RecordSeed(objectType string, n int) {
	if m == nil {
		return
	}
	m.Seeded.WithLabelValues(objectType).Add(float64(n))
}

// ObserveStep records one completed step.
func (m *Metrics) ObserveStep(s systems.StepStats, counts ensemble.StatusCounts, simTime time.Time, took time.Duration) {
	if m == nil {
		return
	}
	m.Steps.Inc()
	m.StepDurations.Observe(took.Seconds())
	m.Strandings.Add(float64(s.Stranded))
	m.MissingData.Add(float64(s.MissingData))
	m.SimTime.Set(float64(simTime.Unix()))
	m.SetCounts(counts)
}

// SetCounts sets the per-status particle gauges.
func (m *Metrics) SetCounts(counts ensemble.StatusCounts) {
	if m == nil {
		return
	}
	for i, name := range components.StatusNames() {
		m.Particles.WithLabelValues(name).Set(float64(counts.Of(components.Status(i))))
	}
}

// register registers c, returning the existing collector when an identical
// one is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}

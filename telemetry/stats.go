package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/systems"
)

// StepRecord is one row of steps.csv.
type StepRecord struct {
	Step int    `csv:"step"`
	Time string `csv:"time"`

	// Ensemble counts after the step
	Initial     int `csv:"initial"`
	Active      int `csv:"active"`
	MissingData int `csv:"missing_data"`
	Stranded    int `csv:"stranded"`
	Evaporated  int `csv:"evaporated"`
	Dispersed   int `csv:"dispersed"`

	// Events during the step
	Activated        int     `csv:"activated"`
	Displaced        int     `csv:"displaced"`
	NewlyStranded    int     `csv:"newly_stranded"`
	MissingDataStep  int     `csv:"missing_data_step"`
	MeanLeewaySpeed  float64 `csv:"mean_leeway_speed"`
	MeanCurrentSpeed float64 `csv:"mean_current_speed"`
}

// NewStepRecord combines a step's update stats with the ensemble counts.
func NewStepRecord(step int, t time.Time, s systems.StepStats, counts ensemble.StatusCounts) StepRecord {
	return StepRecord{
		Step:             step,
		Time:             t.UTC().Format(time.RFC3339),
		Initial:          counts.Of(components.StatusInitial),
		Active:           counts.Of(components.StatusActive),
		MissingData:      counts.Of(components.StatusMissingData),
		Stranded:         counts.Of(components.StatusStranded),
		Evaporated:       counts.Of(components.StatusEvaporated),
		Dispersed:        counts.Of(components.StatusDispersed),
		Activated:        s.Activated,
		Displaced:        s.Displaced,
		NewlyStranded:    s.Stranded,
		MissingDataStep:  s.MissingData,
		MeanLeewaySpeed:  s.MeanLeewaySpeed,
		MeanCurrentSpeed: s.MeanCurrentSpeed,
	}
}

// WindowStats holds aggregated statistics for a window of steps.
type WindowStats struct {
	WindowStart int    `csv:"-"`
	WindowEnd   int    `csv:"window_end"`
	SimTime     string `csv:"sim_time"`

	// Counts at window end
	Active      int `csv:"active"`
	MissingData int `csv:"missing_data"`
	Stranded    int `csv:"stranded"`
	Pending     int `csv:"pending"` // still initial

	// Events during window
	Activations       int `csv:"activations"`
	Strandings        int `csv:"strandings"`
	MissingDataEvents int `csv:"missing_data_events"`

	MeanLeewaySpeed float64 `csv:"mean_leeway_speed"`

	// Distance from release centre, km
	DriftMean float64 `csv:"drift_mean_km"`
	DriftStd  float64 `csv:"drift_std_km"`
	DriftP10  float64 `csv:"drift_p10_km"`
	DriftP50  float64 `csv:"drift_p50_km"`
	DriftP90  float64 `csv:"drift_p90_km"`
}

// ComputeDriftStats returns mean, sample standard deviation and the
// empirical 10th, 50th and 90th percentiles of values.
func ComputeDriftStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n == 1 {
		mean = sorted[0]
	} else {
		mean, std = stat.MeanStdDev(sorted, nil)
	}

	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, std, p10, p50, p90
}

// DriftDistances returns each released particle's distance in km from its
// release centre.
func DriftDistances(particles []ensemble.Particle) []float64 {
	out := make([]float64, 0, len(particles))
	for _, p := range particles {
		if p.State.Status == components.StatusInitial {
			continue
		}
		d := systems.Distance(p.Release.Lon, p.Release.Lat, p.Position.Lon, p.Position.Lat)
		out = append(out, d/1000)
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStart),
		slog.Int("window_end", s.WindowEnd),
		slog.String("sim_time", s.SimTime),
		slog.Int("active", s.Active),
		slog.Int("missing_data", s.MissingData),
		slog.Int("stranded", s.Stranded),
		slog.Int("pending", s.Pending),
		slog.Int("activations", s.Activations),
		slog.Int("strandings", s.Strandings),
		slog.Int("missing_data_events", s.MissingDataEvents),
		slog.Float64("mean_leeway_speed", s.MeanLeewaySpeed),
		slog.Float64("drift_mean_km", s.DriftMean),
		slog.Float64("drift_std_km", s.DriftStd),
		slog.Float64("drift_p50_km", s.DriftP50),
		slog.Float64("drift_p90_km", s.DriftP90),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEnd,
		"sim_time", s.SimTime,
		"active", s.Active,
		"stranded", s.Stranded,
		"missing_data", s.MissingData,
		"strandings", s.Strandings,
		"drift_p50_km", s.DriftP50,
	)
}

package telemetry

import (
	"time"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/systems"
)

// Collector accumulates step stats within windows and produces WindowStats.
type Collector struct {
	windowSteps int

	// Current window tracking
	windowStart int

	// Event counters for current window
	activations       int
	strandings        int
	missingDataEvents int
	displaced         int
	leewaySpeedSum    float64
}

// NewCollector creates a collector flushing every windowSteps steps.
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{windowSteps: windowSteps}
}

// Record adds one step's update stats to the current window.
func (c *Collector) Record(s systems.StepStats) {
	c.activations += s.Activated
	c.strandings += s.Stranded
	c.missingDataEvents += s.MissingData
	c.displaced += s.Displaced
	c.leewaySpeedSum += s.MeanLeewaySpeed * float64(s.Displaced)
}

// ShouldFlush returns true if enough steps have passed to flush the window.
func (c *Collector) ShouldFlush(step int) bool {
	return step-c.windowStart >= c.windowSteps
}

// Flush produces a WindowStats and resets counters for the next window.
// distances are drift distances in km (see DriftDistances).
func (c *Collector) Flush(step int, simTime time.Time, counts ensemble.StatusCounts, distances []float64) WindowStats {
	var meanLeeway float64
	if c.displaced > 0 {
		meanLeeway = c.leewaySpeedSum / float64(c.displaced)
	}
	mean, std, p10, p50, p90 := ComputeDriftStats(distances)

	stats := WindowStats{
		WindowStart:       c.windowStart,
		WindowEnd:         step,
		SimTime:           simTime.UTC().Format(time.RFC3339),
		Active:            counts.Of(components.StatusActive),
		MissingData:       counts.Of(components.StatusMissingData),
		Stranded:          counts.Of(components.StatusStranded),
		Pending:           counts.Of(components.StatusInitial),
		Activations:       c.activations,
		Strandings:        c.strandings,
		MissingDataEvents: c.missingDataEvents,
		MeanLeewaySpeed:   meanLeeway,
		DriftMean:         mean,
		DriftStd:          std,
		DriftP10:          p10,
		DriftP50:          p50,
		DriftP90:          p90,
	}

	*c = Collector{windowSteps: c.windowSteps, windowStart: step}
	return stats
}

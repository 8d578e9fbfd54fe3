package systems

import (
	"math"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/environment"
)

// cmToM converts leeway speeds (cm/s) to m/s.
const cmToM = 0.01

// Environment is what the leeway update needs from the environment layer.
type Environment interface {
	Sample(t time.Time, lon, lat float64) (environment.Sample, error)
	IsLand(t time.Time, lon, lat float64) (land, ok bool)
}

// StepStats summarises one update.
type StepStats struct {
	Activated   int // initial -> active
	Displaced   int // received leeway displacement
	Stranded    int // stranded this step
	MissingData int // no environment data this step
	// Mean leeway and current speed over displaced particles, m/s.
	MeanLeewaySpeed  float64
	MeanCurrentSpeed float64
}

// LeewaySystem advances particles by one timestep of leeway and current drift.
type LeewaySystem struct {
	filter *ecs.Filter4[components.State, components.Leeway, components.Position, components.Release]
	env    Environment
	status *StatusTracker
}

// NewLeewaySystem creates the drift updater for ens.
func NewLeewaySystem(ens *ensemble.Ensemble, env Environment, status *StatusTracker) *LeewaySystem {
	return &LeewaySystem{
		filter: ecs.NewFilter4[components.State, components.Leeway, components.Position, components.Release](ens.World()),
		env:    env,
		status: status,
	}
}

// LeewayVelocity returns the leeway drift (vx, vy) in cm/s for wind (xWind, yWind) in m/s.
func LeewayVelocity(lw *components.Leeway, xWind, yWind float64) (vx, vy float64) {
	windspeed := math.Hypot(xWind, yWind)
	winddir := math.Atan2(xWind, yWind)

	downwind := lw.EffectiveDownwindSlope()*windspeed + lw.DownwindOffset + lw.DownwindEps/2.0
	crosswind := lw.Orientation.Sign() * (lw.CrosswindSlope*windspeed + lw.CrosswindOffset)

	sin, cos := math.Sincos(winddir)
	vx = downwind*cos + crosswind*sin
	vy = -downwind*sin + crosswind*cos
	return vx, vy
}

// Update advances every particle by dt starting at now.
//
// Per particle the stages run in a fixed order: age, environment sample,
// leeway displacement, stranding check at the new position, current
// displacement. A particle stranded by its leeway move is not moved by the
// current in the same step; one whose new position has no land mask becomes
// missing_data and is not moved by the current either.
func (s *LeewaySystem) Update(now time.Time, dt time.Duration) StepStats {
	var stats StepStats
	secs := dt.Seconds()
	var leewaySum, currentSum float64
	uncovered := 0

	query := s.filter.Query()
	for query.Next() {
		st, lw, pos, rel := query.Get()

		st.AgeSeconds += secs

		if !s.eligible(st, rel, now) {
			continue
		}

		sample, err := s.env.Sample(now, pos.Lon, pos.Lat)
		if err != nil {
			// Coverage gaps only pause this particle; the rest of the ensemble moves on.
			s.status.Set(st, components.StatusMissingData)
			stats.MissingData++
			continue
		}
		if st.Status == components.StatusInitial {
			stats.Activated++
		}
		s.status.Set(st, components.StatusActive)

		vx, vy := LeewayVelocity(lw, sample.XWind, sample.YWind)
		vx, vy = vx*cmToM, vy*cmToM
		pos.Lon, pos.Lat = Advect(pos.Lon, pos.Lat, vx, vy, secs)
		stats.Displaced++
		leewaySum += math.Hypot(vx, vy)

		land, ok := s.env.IsLand(now, pos.Lon, pos.Lat)
		if !ok {
			// No land mask at the new position: keep the leeway move, hold the current.
			s.status.Set(st, components.StatusMissingData)
			stats.MissingData++
			uncovered++
			continue
		}
		if land {
			s.status.Deactivate(st, components.StatusStranded)
			stats.Stranded++
			continue
		}

		pos.Lon, pos.Lat = Advect(pos.Lon, pos.Lat, sample.XCurrent, sample.YCurrent, secs)
		currentSum += math.Hypot(sample.XCurrent, sample.YCurrent)
	}

	if stats.Displaced > 0 {
		stats.MeanLeewaySpeed = leewaySum / float64(stats.Displaced)
		if moved := stats.Displaced - stats.Stranded - uncovered; moved > 0 {
			stats.MeanCurrentSpeed = currentSum / float64(moved)
		}
	}
	return stats
}

// eligible reports whether a particle takes part in this step's displacement.
func (s *LeewaySystem) eligible(st *components.State, rel *components.Release, now time.Time) bool {
	switch st.Status {
	case components.StatusActive, components.StatusMissingData:
		return true
	case components.StatusInitial:
		return !rel.Time.After(now)
	}
	return false
}

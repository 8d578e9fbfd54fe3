package systems

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/objprop"
)

// DefaultMaxSamplingAttempts bounds the downwind residual rejection loop.
const DefaultMaxSamplingAttempts = 1000

// TimeSource reports the earliest time environment data is available.
type TimeSource interface {
	StartTime() (time.Time, bool)
}

// SeedRequest describes a release of particles along a line over a time span.
// The optional end fields default to the start values when nil.
type SeedRequest struct {
	Lon, Lat   float64
	Radius     float64   // metres, >= 0
	Count      int       // >= 1
	Time       time.Time // zero: earliest environment time
	ObjectType int       // ordinal into the property table

	Lon1, Lat1 *float64
	Radius1    *float64
	Time1      *time.Time
}

// SeedResult describes a completed release.
type SeedResult struct {
	Entities   []ecs.Entity
	Start, End time.Time
	ObjectType *objprop.Properties
}

// Seeder converts seeding requests into particles in an ensemble.
// All randomness of a run is drawn here; updates are deterministic.
type Seeder struct {
	ens   *ensemble.Ensemble
	table *objprop.Table
	times TimeSource

	normal  distuv.Normal
	uniform distuv.Uniform

	// MaxAttempts bounds the draws per particle for the downwind residual.
	MaxAttempts int
}

// NewSeeder creates a seeder drawing from a PCG stream seeded with seed.
// times may be nil.
func NewSeeder(ens *ensemble.Ensemble, table *objprop.Table, times TimeSource, seed uint64) *Seeder {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Seeder{
		ens:         ens,
		table:       table,
		times:       times,
		normal:      distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		uniform:     distuv.Uniform{Min: 0, Max: 1, Src: src},
		MaxAttempts: DefaultMaxSamplingAttempts,
	}
}

// SeedByName seeds particles of the object type with the given key.
func (s *Seeder) SeedByName(key string, req SeedRequest) (SeedResult, error) {
	idx := s.table.Index(key)
	if idx < 0 {
		return SeedResult{}, &UnknownObjectTypeError{ObjectType: -1, Key: key, TableLen: s.table.Len()}
	}
	req.ObjectType = idx
	return s.Seed(req)
}

// Seed validates req and adds req.Count particles to the ensemble.
func (s *Seeder) Seed(req SeedRequest) (SeedResult, error) {
	if req.Count < 1 {
		return SeedResult{}, &InvalidRequestError{Field: "count", Reason: fmt.Sprintf("must be >= 1, got %d", req.Count)}
	}
	props, ok := s.table.At(req.ObjectType)
	if !ok {
		return SeedResult{}, &UnknownObjectTypeError{ObjectType: req.ObjectType, TableLen: s.table.Len()}
	}

	radius1 := req.Radius
	if req.Radius1 != nil {
		radius1 = *req.Radius1
	}
	if req.Radius < 0 || radius1 < 0 || math.IsNaN(req.Radius) || math.IsNaN(radius1) {
		return SeedResult{}, &InvalidRequestError{Field: "radius", Reason: "must be >= 0"}
	}

	lon1, lat1 := req.Lon, req.Lat
	if req.Lon1 != nil || req.Lat1 != nil {
		if req.Lon1 == nil || req.Lat1 == nil {
			return SeedResult{}, &InvalidRequestError{Field: "lon1/lat1", Reason: "must be given together"}
		}
		lon1, lat1 = *req.Lon1, *req.Lat1
	}
	if !validLatLon(req.Lon, req.Lat) || !validLatLon(lon1, lat1) {
		return SeedResult{}, &InvalidRequestError{Field: "position", Reason: "must have lat in [-90, 90] and finite lon"}
	}
	if Antipodal(req.Lon, req.Lat, lon1, lat1) {
		return SeedResult{}, &InvalidRequestError{Field: "lon1/lat1", Reason: "must not be antipodal to lon/lat"}
	}

	start := req.Time
	if start.IsZero() {
		st, ok := s.startTime()
		if !ok {
			return SeedResult{}, ErrMissingTime
		}
		slog.Info("using reader start time for seeding", "start_time", st)
		start = st
	}
	end := start
	if req.Time1 != nil {
		end = *req.Time1
	}
	if end.Before(start) {
		return SeedResult{}, &InvalidRequestError{Field: "time1", Reason: "must not be before time"}
	}

	n := req.Count

	// Downwind coefficients are shared by the batch; only the residual is per particle.
	dw := props.Downwind()
	downwindEps := make([]float64, n)
	for i := range downwindEps {
		eps, err := s.drawDownwindEps(dw, props.Index, i)
		if err != nil {
			return SeedResult{}, err
		}
		downwindEps[i] = eps
	}

	crosswindDraws := make([]float64, n)
	for i := range crosswindDraws {
		crosswindDraws[i] = s.normal.Rand()
	}

	lons, lats := GreatCirclePoints(req.Lon, req.Lat, lon1, lat1, n)

	var step time.Duration
	if n > 1 {
		step = end.Sub(start) / time.Duration(n-1)
	}

	entities := make([]ecs.Entity, n)
	for i := 0; i < n; i++ {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		radius := lerp(req.Radius, radius1, frac)

		orientation := components.OrientationForIndex(i)
		cw := props.CrosswindRight()
		if orientation == components.Left {
			cw = props.CrosswindLeft()
		}
		// The table signs the left branch; store it relative to the particle's side.
		sign := orientation.Sign()

		lw := components.Leeway{
			ObjectType:      props.Index,
			Orientation:     orientation,
			DownwindSlope:   dw.Slope,
			DownwindOffset:  dw.Offset,
			DownwindEps:     downwindEps[i],
			CrosswindSlope:  sign * cw.Slope,
			CrosswindOffset: sign * cw.Offset,
			CrosswindEps:    sign * crosswindDraws[i] * cw.Std,
			JibeProbability: components.DefaultJibeProbability,
		}
		releaseTime := start.Add(step * time.Duration(i))
		if i == n-1 {
			releaseTime = end
		}
		rel := components.Release{
			Time:   releaseTime,
			Lon:    lons[i],
			Lat:    lats[i],
			Radius: radius,
		}
		lon, lat := s.scatter(lons[i], lats[i], radius)

		entities[i] = s.ens.Spawn(lw, components.Position{Lon: lon, Lat: lat}, rel)
	}

	slog.Debug("seeded leeway particles",
		"count", n,
		"object_type", props.Key,
		"start", start,
		"end", end,
	)

	return SeedResult{Entities: entities, Start: start, End: end, ObjectType: props}, nil
}

// drawDownwindEps draws N(0,1)*std until slope + eps/20 >= 0.
func (s *Seeder) drawDownwindEps(dw objprop.Branch, objectType, particle int) (float64, error) {
	maxAttempts := s.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxSamplingAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		eps := s.normal.Rand() * dw.Std
		if dw.Slope+eps/20.0 >= 0 {
			return eps, nil
		}
	}
	return 0, &SamplingError{
		ObjectType: objectType,
		Particle:   particle,
		Attempts:   maxAttempts,
		Slope:      dw.Slope,
		Std:        dw.Std,
	}
}

// scatter returns a point uniformly distributed within radius metres of (lon, lat).
func (s *Seeder) scatter(lon, lat, radius float64) (float64, float64) {
	if radius <= 0 {
		return lon, lat
	}
	r := radius * math.Sqrt(s.uniform.Rand())
	theta := 2 * math.Pi * s.uniform.Rand()
	return Displace(lon, lat, r*math.Cos(theta), r*math.Sin(theta))
}

func (s *Seeder) startTime() (time.Time, bool) {
	if s.times == nil {
		return time.Time{}, false
	}
	return s.times.StartTime()
}

func validLatLon(lon, lat float64) bool {
	return !math.IsNaN(lon) && !math.IsInf(lon, 0) && lat >= -90 && lat <= 90
}

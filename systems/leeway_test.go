package systems

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/environment"
	"github.com/pthm-cable/leeway/objprop"
)

// stubEnv returns a fixed sample everywhere, with optional holes and land.
type stubEnv struct {
	sample  environment.Sample
	missing func(lon, lat float64) bool
	land    func(lon, lat float64) bool
	noMask  func(lon, lat float64) bool
}

func (e *stubEnv) Sample(t time.Time, lon, lat float64) (environment.Sample, error) {
	if e.missing != nil && e.missing(lon, lat) {
		return environment.Sample{}, errors.New("no coverage")
	}
	return e.sample, nil
}

func (e *stubEnv) IsLand(t time.Time, lon, lat float64) (bool, bool) {
	if e.noMask != nil && e.noMask(lon, lat) {
		return false, false
	}
	if e.land == nil {
		return false, true
	}
	return e.land(lon, lat), true
}

func newLeewayFixture(env Environment) (*ensemble.Ensemble, *LeewaySystem, *StatusTracker) {
	ens := ensemble.New()
	tracker := NewStatusTracker(ens)
	return ens, NewLeewaySystem(ens, env, tracker), tracker
}

func spawnAt(ens *ensemble.Ensemble, lw components.Leeway, lon, lat float64, release time.Time) {
	ens.Spawn(lw,
		components.Position{Lon: lon, Lat: lat},
		components.Release{Time: release, Lon: lon, Lat: lat},
	)
}

func TestLeewayVelocity(t *testing.T) {
	right := components.Leeway{
		Orientation:     components.Right,
		DownwindSlope:   2,
		DownwindOffset:  1,
		DownwindEps:     4,
		CrosswindSlope:  0.5,
		CrosswindOffset: 3,
	}
	left := right
	left.Orientation = components.Left

	tests := []struct {
		name         string
		lw           components.Leeway
		xWind, yWind float64
		wantX, wantY float64
	}{
		// downwind = (2 + 4/20)*10 + 1 + 4/2 = 25, crosswind = 0.5*10 + 3 = 8
		{"northward wind right", right, 0, 10, 25, 8},
		{"northward wind left", left, 0, 10, 25, -8},
		{"eastward wind right", right, 10, 0, 8, -25},
		{"eastward wind left", left, 10, 0, -8, -25},
		// calm: downwind = 1 + 2 = 3, crosswind = 3, direction 0
		{"calm", right, 0, 0, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vx, vy := LeewayVelocity(&tt.lw, tt.xWind, tt.yWind)
			if math.Abs(vx-tt.wantX) > 1e-9 || math.Abs(vy-tt.wantY) > 1e-9 {
				t.Errorf("LeewayVelocity = (%v, %v), want (%v, %v)", vx, vy, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestLeewayOrientationsDriftToOppositeSides(t *testing.T) {
	tbl, err := objprop.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	for _, key := range []string{"PIW-1", "PIW-2", "LIFE-RAFT-DB-1"} {
		t.Run(key, func(t *testing.T) {
			ens := ensemble.New()
			seeder := NewSeeder(ens, tbl, nil, 11)
			if _, err := seeder.SeedByName(key, SeedRequest{Lon: 4, Lat: 60, Count: 2, Time: t0}); err != nil {
				t.Fatalf("SeedByName: %v", err)
			}
			ps := ens.Particles()
			right, left := ps[0].Leeway, ps[1].Leeway
			if right.Orientation != components.Right || left.Orientation != components.Left {
				t.Fatalf("orientations = %v, %v", right.Orientation, left.Orientation)
			}
			// Northward wind: the crosswind component is vy.
			_, rightCross := LeewayVelocity(&right, 0, 10)
			_, leftCross := LeewayVelocity(&left, 0, 10)
			if rightCross <= 0 || leftCross >= 0 {
				t.Errorf("crosswind right = %v, left = %v; want opposite signs", rightCross, leftCross)
			}
			props, _ := tbl.Lookup(key)
			wantRight := props.CrosswindRightSlope*10 + props.CrosswindRightOffset
			wantLeft := props.CrosswindLeftSlope*10 + props.CrosswindLeftOffset
			if math.Abs(rightCross-wantRight) > 1e-9 || math.Abs(leftCross-wantLeft) > 1e-9 {
				t.Errorf("crosswind = (%v, %v), want table branches (%v, %v)", rightCross, leftCross, wantRight, wantLeft)
			}
		})
	}
}

func TestLeewayCurrentOnlyDrift(t *testing.T) {
	tbl, err := objprop.Load(strings.NewReader("CALM\n>>zero\n0 0 0 0 0 0 0 0 0\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	env := environment.New(environment.NewConstant("forcing", map[environment.Variable]float64{
		environment.XSeaWaterVelocity: 0.5,
		environment.LandBinaryMask:    0,
	}))

	ens, sys, _ := newLeewayFixture(env)
	seeder := NewSeeder(ens, tbl, env, 5)
	if _, err := seeder.Seed(SeedRequest{Lon: 4, Lat: 60, Count: 10, Time: t0}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	stats := sys.Update(t0, time.Hour)
	if stats.Activated != 10 || stats.Displaced != 10 {
		t.Errorf("stats = %+v, want 10 activated and displaced", stats)
	}

	wantLon := 4 + 1800/(EarthRadius*math.Cos(60*degToRad))*radToDeg
	for _, p := range ens.Particles() {
		if math.Abs(p.Position.Lon-wantLon) > 1e-9 || math.Abs(p.Position.Lat-60) > 1e-12 {
			t.Errorf("particle %d at %+v, want (%v, 60)", p.State.ID, p.Position, wantLon)
		}
		if p.State.Status != components.StatusActive {
			t.Errorf("particle %d status = %v, want active", p.State.ID, p.State.Status)
		}
		if p.State.AgeSeconds != 3600 {
			t.Errorf("particle %d age = %v, want 3600", p.State.ID, p.State.AgeSeconds)
		}
	}
}

func TestLeewayStrandingSkipsCurrent(t *testing.T) {
	env := &stubEnv{
		sample: environment.Sample{XCurrent: 0.5},
		land:   func(lon, lat float64) bool { return lon > 4.01 },
	}
	ens, sys, tracker := newLeewayFixture(env)

	// Calm wind: leeway is the downwind offset, 100 cm/s towards east.
	lw := components.Leeway{DownwindOffset: 100}
	spawnAt(ens, lw, 4, 60, t0)
	spawnAt(ens, lw, -10, 60, t0)

	stats := sys.Update(t0, time.Hour)
	if stats.Stranded != 1 {
		t.Fatalf("stranded = %d, want 1", stats.Stranded)
	}

	ps := ens.Particles()
	stranded, free := ps[0], ps[1]

	wantLon, wantLat := Advect(4, 60, 1, 0, 3600)
	if stranded.State.Status != components.StatusStranded {
		t.Errorf("status = %v, want stranded", stranded.State.Status)
	}
	if stranded.Position.Lon != wantLon || stranded.Position.Lat != wantLat {
		t.Errorf("stranded at %+v, want leeway-only position (%v, %v)", stranded.Position, wantLon, wantLat)
	}

	fLon, fLat := Advect(-10, 60, 1, 0, 3600)
	fLon, fLat = Advect(fLon, fLat, 0.5, 0, 3600)
	if math.Abs(free.Position.Lon-fLon) > 1e-12 || math.Abs(free.Position.Lat-fLat) > 1e-12 {
		t.Errorf("free particle at %+v, want (%v, %v)", free.Position, fLon, fLat)
	}

	// Stranded particles stay put but keep ageing.
	sys.Update(t0.Add(time.Hour), time.Hour)
	p, _ := ens.Get(stranded.Entity)
	if p.Position != stranded.Position {
		t.Errorf("stranded particle moved to %+v", p.Position)
	}
	if p.State.AgeSeconds != 7200 {
		t.Errorf("age = %v, want 7200", p.State.AgeSeconds)
	}
	if got := tracker.Transitions(components.StatusStranded); got != 1 {
		t.Errorf("stranded transitions = %d, want 1", got)
	}
}

func TestLeewayUncoveredLandMaskHoldsCurrent(t *testing.T) {
	env := &stubEnv{
		sample: environment.Sample{XCurrent: 0.5},
		noMask: func(lon, lat float64) bool { return lon > 4.01 },
	}
	ens, sys, _ := newLeewayFixture(env)
	spawnAt(ens, components.Leeway{DownwindOffset: 100}, 4, 60, t0)

	stats := sys.Update(t0, time.Hour)
	if stats.MissingData != 1 || stats.Stranded != 0 {
		t.Errorf("stats = %+v, want 1 missing and none stranded", stats)
	}
	if stats.MeanCurrentSpeed != 0 {
		t.Errorf("mean current speed = %v, want 0", stats.MeanCurrentSpeed)
	}

	p := ens.Particles()[0]
	if p.State.Status != components.StatusMissingData {
		t.Errorf("status = %v, want missing_data", p.State.Status)
	}
	wantLon, wantLat := Advect(4, 60, 1, 0, 3600)
	if p.Position.Lon != wantLon || p.Position.Lat != wantLat {
		t.Errorf("position = %+v, want leeway-only (%v, %v)", p.Position, wantLon, wantLat)
	}
}

func TestLeewayPendingRelease(t *testing.T) {
	env := &stubEnv{sample: environment.Sample{XCurrent: 1}}
	ens, sys, _ := newLeewayFixture(env)
	spawnAt(ens, components.Leeway{}, 4, 60, t0.Add(2*time.Hour))

	sys.Update(t0, time.Hour)
	p := ens.Particles()[0]
	if p.State.Status != components.StatusInitial {
		t.Errorf("status = %v, want initial before release", p.State.Status)
	}
	if p.Position.Lon != 4 || p.Position.Lat != 60 {
		t.Errorf("unreleased particle moved to %+v", p.Position)
	}
	if p.State.AgeSeconds != 3600 {
		t.Errorf("age = %v, want 3600", p.State.AgeSeconds)
	}

	sys.Update(t0.Add(2*time.Hour), time.Hour)
	p = ens.Particles()[0]
	if p.State.Status != components.StatusActive {
		t.Errorf("status = %v, want active after release", p.State.Status)
	}
	if p.Position.Lon <= 4 {
		t.Errorf("released particle did not drift east: %+v", p.Position)
	}
}

func TestLeewayMissingDataRecovers(t *testing.T) {
	env := &stubEnv{
		sample:  environment.Sample{XCurrent: 1},
		missing: func(lon, lat float64) bool { return lon < -50 },
	}
	ens, sys, _ := newLeewayFixture(env)
	spawnAt(ens, components.Leeway{}, -60, 10, t0)
	spawnAt(ens, components.Leeway{}, 0, 10, t0)

	stats := sys.Update(t0, time.Hour)
	if stats.MissingData != 1 || stats.Displaced != 1 {
		t.Errorf("stats = %+v, want 1 missing and 1 displaced", stats)
	}
	ps := ens.Particles()
	if ps[0].State.Status != components.StatusMissingData {
		t.Errorf("status = %v, want missing_data", ps[0].State.Status)
	}
	if ps[0].Position.Lon != -60 {
		t.Errorf("particle without data moved to %+v", ps[0].Position)
	}
	if ps[1].State.Status != components.StatusActive {
		t.Errorf("covered particle status = %v", ps[1].State.Status)
	}

	env.missing = nil
	sys.Update(t0.Add(time.Hour), time.Hour)
	p, _ := ens.Get(ps[0].Entity)
	if p.State.Status != components.StatusActive {
		t.Errorf("status after coverage returns = %v, want active", p.State.Status)
	}
	if p.Position.Lon <= -60 {
		t.Errorf("particle did not resume drifting: %+v", p.Position)
	}
}

func TestLeewayPreservesCardinality(t *testing.T) {
	env := &stubEnv{
		sample: environment.Sample{XWind: 8, YWind: -3, XCurrent: 0.2, YCurrent: 0.1},
		land:   func(lon, lat float64) bool { return lat > 60.05 },
	}
	ens, sys, _ := newLeewayFixture(env)
	seeder := NewSeeder(ens, mustTable(t), nil, 9)
	if _, err := seeder.Seed(SeedRequest{Lon: 4, Lat: 60, Radius: 2000, Count: 40, Time: t0, ObjectType: 1}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	now := t0
	for i := 0; i < 12; i++ {
		sys.Update(now, 30*time.Minute)
		now = now.Add(30 * time.Minute)
		if ens.Len() != 40 {
			t.Fatalf("step %d: %d particles, want 40", i, ens.Len())
		}
	}

	counts := ens.CountByStatus()
	total := 0
	for s := 0; s < components.StatusCount(); s++ {
		total += counts.Of(components.Status(s))
	}
	if total != 40 {
		t.Errorf("status counts sum to %d, want 40", total)
	}
	for _, p := range ens.Particles() {
		if p.State.AgeSeconds != 6*3600 {
			t.Errorf("particle %d age = %v, want %v", p.State.ID, p.State.AgeSeconds, 6*3600)
		}
	}
}

// Package simulation drives a leeway drift run: it owns the property table,
// the particle ensemble, the environment and the clock, and advances them
// step by step while feeding output and telemetry.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/environment"
	"github.com/pthm-cable/leeway/objprop"
	"github.com/pthm-cable/leeway/storage"
	"github.com/pthm-cable/leeway/systems"
	"github.com/pthm-cable/leeway/telemetry"
)

// ErrNotStarted is returned by Step before the clock has a start time.
var ErrNotStarted = errors.New("simulation clock not started: seed particles or set a start time")

// Options configures a Simulation. Table, Environment and TimeStep are required.
type Options struct {
	Table       *objprop.Table
	Environment *environment.Environment
	Seed        uint64
	TimeStep    time.Duration
	// Start sets the clock; zero means the start of the first seeding.
	Start time.Time

	Output          *telemetry.OutputManager
	Store           *storage.Store
	Metrics         *telemetry.Metrics
	Perf            *telemetry.PerfCollector
	Tracer          trace.Tracer
	StatsWindow     int // steps per window stats flush
	TrajectoryEvery int // steps between trajectory records
}

// Simulation is a single drift run.
type Simulation struct {
	table   *objprop.Table
	ens     *ensemble.Ensemble
	env     *environment.Environment
	seeder  *systems.Seeder
	leeway  *systems.LeewaySystem
	status  *systems.StatusTracker
	rngSeed uint64

	// Clock
	now     time.Time
	started bool
	dt      time.Duration
	step    int

	// Output and telemetry
	output          *telemetry.OutputManager
	store           *storage.Store
	runID           int64
	metrics         *telemetry.Metrics
	perf            *telemetry.PerfCollector
	collector       *telemetry.Collector
	tracer          trace.Tracer
	trajectoryEvery int
	initialWritten  bool

	statsCallback func(telemetry.WindowStats)
}

// New creates a simulation with an empty ensemble.
func New(opts Options) (*Simulation, error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("simulation needs a property table")
	}
	if opts.Environment == nil {
		return nil, fmt.Errorf("simulation needs an environment")
	}
	if opts.TimeStep <= 0 {
		return nil, fmt.Errorf("time step must be positive, got %s", opts.TimeStep)
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer()
	}
	if opts.TrajectoryEvery < 1 {
		opts.TrajectoryEvery = 1
	}

	ens := ensemble.New()
	status := systems.NewStatusTracker(ens)
	s := &Simulation{
		table:           opts.Table,
		ens:             ens,
		env:             opts.Environment,
		seeder:          systems.NewSeeder(ens, opts.Table, opts.Environment, opts.Seed),
		leeway:          systems.NewLeewaySystem(ens, opts.Environment, status),
		status:          status,
		rngSeed:         opts.Seed,
		dt:              opts.TimeStep,
		output:          opts.Output,
		store:           opts.Store,
		metrics:         opts.Metrics,
		perf:            opts.Perf,
		collector:       telemetry.NewCollector(opts.StatsWindow),
		tracer:          opts.Tracer,
		trajectoryEvery: opts.TrajectoryEvery,
	}
	if !opts.Start.IsZero() {
		s.now = opts.Start
		s.started = true
	}
	return s, nil
}

// SetStatsCallback registers fn to receive every flushed stats window.
func (s *Simulation) SetStatsCallback(fn func(telemetry.WindowStats)) {
	s.statsCallback = fn
}

// Seed releases particles described by req.
func (s *Simulation) Seed(ctx context.Context, req systems.SeedRequest) (systems.SeedResult, error) {
	return s.seed(ctx, "", req)
}

// SeedByName releases particles of the object type with the given key.
func (s *Simulation) SeedByName(ctx context.Context, key string, req systems.SeedRequest) (systems.SeedResult, error) {
	return s.seed(ctx, key, req)
}

func (s *Simulation) seed(ctx context.Context, key string, req systems.SeedRequest) (systems.SeedResult, error) {
	ctx, span := s.tracer.Start(ctx, "leeway.seed", trace.WithAttributes(
		attribute.Int("count", req.Count),
		attribute.Int("object_type", req.ObjectType),
		attribute.String("object_key", key),
	))
	defer span.End()

	var (
		res systems.SeedResult
		err error
	)
	if key != "" {
		res, err = s.seeder.SeedByName(key, req)
	} else {
		res, err = s.seeder.Seed(req)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seeding failed")
		return res, fmt.Errorf("seeding: %w", err)
	}

	if !s.started {
		s.now = res.Start
		s.started = true
	}
	s.metrics.RecordSeed(res.ObjectType.Key, len(res.Entities))

	if s.store != nil && s.runID == 0 {
		id, err := s.store.CreateRun(ctx, storage.Run{
			ObjectType: res.ObjectType.Key,
			Seed:       s.rngSeed,
			Start:      s.now,
			TimeStep:   s.dt,
			Particles:  len(res.Entities),
		})
		if err != nil {
			return res, fmt.Errorf("recording run: %w", err)
		}
		s.runID = id
	}

	slog.Info("seeded",
		"object_type", res.ObjectType.Key,
		"count", len(res.Entities),
		"start", res.Start,
		"end", res.End,
		"particles", s.ens.Len(),
	)
	return res, nil
}

// Step advances the simulation by one time step.
func (s *Simulation) Step(ctx context.Context) (systems.StepStats, error) {
	if !s.started {
		return systems.StepStats{}, ErrNotStarted
	}

	ctx, span := s.tracer.Start(ctx, "leeway.step", trace.WithAttributes(
		attribute.Int("step", s.step+1),
		attribute.String("time", s.now.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	began := time.Now()
	s.perf.StartStep()

	if !s.initialWritten {
		s.perf.StartPhase(systems.PhaseOutput)
		if err := s.writeTrajectory(ctx); err != nil {
			return systems.StepStats{}, s.fail(span, err)
		}
		s.initialWritten = true
	}

	s.perf.StartPhase(systems.PhaseLeeway)
	stats := s.leeway.Update(s.now, s.dt)
	s.now = s.now.Add(s.dt)
	s.step++

	s.perf.StartPhase(systems.PhaseStatus)
	counts := s.ens.CountByStatus()

	s.perf.StartPhase(systems.PhaseOutput)
	if s.step%s.trajectoryEvery == 0 {
		if err := s.writeTrajectory(ctx); err != nil {
			return stats, s.fail(span, err)
		}
	}
	if err := s.output.WriteStep(telemetry.NewStepRecord(s.step, s.now, stats, counts)); err != nil {
		return stats, s.fail(span, err)
	}

	s.perf.StartPhase(systems.PhaseTelemetry)
	s.collector.Record(stats)
	if s.collector.ShouldFlush(s.step) {
		s.flushTelemetry(counts)
	}
	s.perf.EndStep()
	s.metrics.ObserveStep(stats, counts, s.now, time.Since(began))

	span.SetAttributes(
		attribute.Int("displaced", stats.Displaced),
		attribute.Int("stranded", stats.Stranded),
		attribute.Int("missing_data", stats.MissingData),
	)
	return stats, nil
}

// Run performs steps time steps, stopping early when ctx is done.
func (s *Simulation) Run(ctx context.Context, steps int) error {
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run stopped after %d of %d steps: %w", i, steps, err)
		}
		if _, err := s.Step(ctx); err != nil {
			return fmt.Errorf("step %d: %w", s.step+1, err)
		}
	}
	return nil
}

// Deactivate moves every non-terminal particle matching pred into the
// terminal status reason and returns how many changed.
func (s *Simulation) Deactivate(reason components.Status, pred func(st *components.State, pos *components.Position) bool) (int, error) {
	if !reason.Terminal() {
		return 0, fmt.Errorf("deactivation reason %s is not terminal", reason)
	}
	return s.status.DeactivateWhere(reason, pred), nil
}

// Now returns the simulation clock.
func (s *Simulation) Now() time.Time { return s.now }

// StepCount returns the number of completed steps.
func (s *Simulation) StepCount() int { return s.step }

// Ensemble returns the particle ensemble.
func (s *Simulation) Ensemble() *ensemble.Ensemble { return s.ens }

// Table returns the object-type property table.
func (s *Simulation) Table() *objprop.Table { return s.table }

// Counts returns the number of particles per status.
func (s *Simulation) Counts() ensemble.StatusCounts { return s.ens.CountByStatus() }

// RunID returns the storage run ID, or 0 when no store is attached.
func (s *Simulation) RunID() int64 { return s.runID }

func (s *Simulation) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// flushTelemetry logs and writes a stats window.
func (s *Simulation) flushTelemetry(counts ensemble.StatusCounts) {
	stats := s.collector.Flush(s.step, s.now, counts, telemetry.DriftDistances(s.ens.Particles()))
	stats.LogStats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}
	if err := s.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if s.perf != nil {
		perfStats := s.perf.Stats()
		slog.Debug("perf", "stats", perfStats)
		if err := s.output.WritePerf(perfStats, s.step); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

package simulation

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/leeway/config"
	"github.com/pthm-cable/leeway/environment"
	"github.com/pthm-cable/leeway/objprop"
	"github.com/pthm-cable/leeway/systems"
)

// BuildEnvironment assembles readers and fallbacks from configuration.
// Readers are consulted in the order grid, land shapefile, constant.
func BuildEnvironment(cfg config.EnvironmentConfig) (*environment.Environment, error) {
	env := environment.New()

	if cfg.GridPath != "" {
		grid, err := environment.LoadGridFile(cfg.GridPath)
		if err != nil {
			return nil, fmt.Errorf("loading forcing grid: %w", err)
		}
		env.AddReader(grid)
		slog.Info("loaded forcing grid", "path", cfg.GridPath, "start", grid.StartTime(), "end", grid.EndTime())
	}

	if cfg.LandShapefile != "" {
		land, err := environment.LoadLandShapefile(cfg.LandShapefile)
		if err != nil {
			return nil, fmt.Errorf("loading land polygons: %w", err)
		}
		env.AddReader(land)
		slog.Info("loaded land polygons", "path", cfg.LandShapefile, "polygons", land.Len())
	}

	if len(cfg.Constant) > 0 {
		values := make(map[environment.Variable]float64, len(cfg.Constant))
		for name, v := range cfg.Constant {
			variable, ok := environment.ParseVariable(name)
			if !ok {
				return nil, fmt.Errorf("environment.constant: unknown variable %q", name)
			}
			values[variable] = v
		}
		env.AddReader(environment.NewConstant("constant", values))
	}

	for name, v := range cfg.Fallbacks {
		variable, ok := environment.ParseVariable(name)
		if !ok {
			return nil, fmt.Errorf("environment.fallbacks: unknown variable %q", name)
		}
		env.SetFallback(variable, v)
	}
	for _, name := range cfg.NoFallback {
		variable, ok := environment.ParseVariable(name)
		if !ok {
			return nil, fmt.Errorf("environment.no_fallback: unknown variable %q", name)
		}
		env.ClearFallback(variable)
	}
	return env, nil
}

// SeedRequest converts the seeding section of cfg into a request. The object
// type is resolved separately by key.
func SeedRequest(cfg *config.Config) systems.SeedRequest {
	sc := cfg.Seeding
	return systems.SeedRequest{
		Lon:     sc.Lon,
		Lat:     sc.Lat,
		Radius:  sc.Radius,
		Count:   sc.Count,
		Time:    cfg.Derived.SeedTime,
		Lon1:    sc.Lon1,
		Lat1:    sc.Lat1,
		Radius1: sc.Radius1,
		Time1:   cfg.Derived.SeedTime1,
	}
}

// FromConfig loads the property table and environment named by cfg and
// creates a simulation. extra supplies output, storage and telemetry.
func FromConfig(cfg *config.Config, extra Options) (*Simulation, error) {
	table, err := objprop.LoadFile(cfg.Objects.TablePath)
	if err != nil {
		return nil, fmt.Errorf("loading object properties: %w", err)
	}
	env, err := BuildEnvironment(cfg.Environment)
	if err != nil {
		return nil, err
	}

	opts := extra
	opts.Table = table
	opts.Environment = env
	opts.Seed = cfg.Simulation.Seed
	opts.TimeStep = cfg.Derived.TimeStep
	if opts.StatsWindow == 0 {
		opts.StatsWindow = cfg.Telemetry.StatsWindow
	}
	if opts.TrajectoryEvery == 0 {
		opts.TrajectoryEvery = cfg.Output.TrajectoryEvery
	}
	return New(opts)
}

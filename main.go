package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/config"
	"github.com/pthm-cable/leeway/simulation"
	"github.com/pthm-cable/leeway/storage"
	"github.com/pthm-cable/leeway/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (empty = use config)")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	steps := flag.Int("steps", 0, "Number of time steps (0 = use config)")
	objectType := flag.String("object-type", "", "Object type key to seed (empty = use config)")
	sqlitePath := flag.String("sqlite", "", "SQLite database for trajectories (empty = use config)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = use config)")
	tracing := flag.Bool("tracing", false, "Export spans to stderr")
	perf := flag.Bool("perf", false, "Collect per-phase step timings")

	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *steps > 0 {
		cfg.Simulation.Steps = *steps
	}
	if *objectType != "" {
		cfg.Seeding.ObjectType = *objectType
	}
	if *sqlitePath != "" {
		cfg.Storage.SQLitePath = *sqlitePath
	}
	if *metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = *metricsAddr
	}
	cfg.Telemetry.Tracing = cfg.Telemetry.Tracing || *tracing
	cfg.Telemetry.Perf = cfg.Telemetry.Perf || *perf

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Telemetry.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:     cfg.Telemetry.Tracing,
		ServiceName: "leeway",
		Writer:      os.Stderr,
	})
	if err != nil {
		return err
	}
	defer telemetry.ShutdownWithTimeout(context.Background(), shutdown)

	output, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	var store *storage.Store
	if cfg.Storage.SQLitePath != "" {
		store, err = storage.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var metrics *telemetry.Metrics
	if cfg.Telemetry.MetricsAddr != "" {
		metrics, err = telemetry.NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}
		srv := serveMetrics(cfg.Telemetry.MetricsAddr, metrics)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	var perf *telemetry.PerfCollector
	if cfg.Telemetry.Perf {
		perf = telemetry.NewPerfCollector(cfg.Telemetry.StatsWindow)
	}

	sim, err := simulation.FromConfig(cfg, simulation.Options{
		Output:  output,
		Store:   store,
		Metrics: metrics,
		Perf:    perf,
	})
	if err != nil {
		return err
	}

	if _, err := sim.SeedByName(ctx, cfg.Seeding.ObjectType, simulation.SeedRequest(cfg)); err != nil {
		return err
	}

	slog.Info("starting simulation",
		"seed", cfg.Simulation.Seed,
		"steps", cfg.Simulation.Steps,
		"time_step", cfg.Derived.TimeStep,
		"start", sim.Now(),
		"output_dir", output.Dir(),
	)

	if err := sim.Run(ctx, cfg.Simulation.Steps); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("simulation interrupted", "step", sim.StepCount())
			return nil
		}
		return err
	}

	counts := sim.Counts()
	attrs := []any{"steps", sim.StepCount(), "end", sim.Now()}
	for i, name := range components.StatusNames() {
		attrs = append(attrs, name, counts[i])
	}
	slog.Info("simulation finished", attrs...)
	return nil
}

func serveMetrics(addr string, metrics *telemetry.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

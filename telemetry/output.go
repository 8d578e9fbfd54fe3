package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/leeway/config"
)

// TrajectoryRecord is one particle position in trajectory.csv.
type TrajectoryRecord struct {
	Step        int     `csv:"step"`
	Time        string  `csv:"time"`
	ID          uint32  `csv:"id"`
	ObjectType  string  `csv:"object_type"`
	Orientation string  `csv:"orientation"`
	Status      string  `csv:"status"`
	Color       string  `csv:"color"`
	Lon         float64 `csv:"lon"`
	Lat         float64 `csv:"lat"`
	AgeSeconds  float64 `csv:"age_s"`
}

// csvFile is an output file that writes its header with the first batch.
type csvFile struct {
	name          string
	f             *os.File
	headerWritten bool
}

func writeRecords[T any](c *csvFile, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return fmt.Errorf("writing %s: %w", c.name, err)
		}
		c.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, c.f); err != nil {
		return fmt.Errorf("writing %s: %w", c.name, err)
	}
	return nil
}

// OutputManager handles run output: trajectory, per-step and window stats,
// perf timings and a config snapshot.
type OutputManager struct {
	dir        string
	trajectory *csvFile
	steps      *csvFile
	telemetry  *csvFile
	perf       *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	targets := []struct {
		dst  **csvFile
		name string
	}{
		{&om.trajectory, "trajectory.csv"},
		{&om.steps, "steps.csv"},
		{&om.telemetry, "telemetry.csv"},
		{&om.perf, "perf.csv"},
	}
	for _, tgt := range targets {
		f, err := os.Create(filepath.Join(dir, tgt.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", tgt.name, err)
		}
		*tgt.dst = &csvFile{name: tgt.name, f: f}
	}
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTrajectory appends particle positions to trajectory.csv.
func (om *OutputManager) WriteTrajectory(records []TrajectoryRecord) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.trajectory, records)
}

// WriteStep appends a step record to steps.csv.
func (om *OutputManager) WriteStep(rec StepRecord) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.steps, []StepRecord{rec})
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.telemetry, []WindowStats{stats})
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.perf, []PerfStatsCSV{stats.ToCSV(windowEnd)})
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, c := range []*csvFile{om.trajectory, om.steps, om.telemetry, om.perf} {
		if c == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/leeway/config"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v", om, err)
	}
	// Every method is a no-op on nil.
	if err := om.WriteStep(StepRecord{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteTrajectory([]TrajectoryRecord{{}}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" {
		t.Error("nil manager has a dir")
	}
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	batch1 := []TrajectoryRecord{
		{Step: 0, ID: 0, ObjectType: "PIW-1", Status: "active", Lon: 4, Lat: 60},
		{Step: 0, ID: 1, ObjectType: "PIW-1", Status: "active", Lon: 4.1, Lat: 60},
	}
	batch2 := []TrajectoryRecord{
		{Step: 1, ID: 0, ObjectType: "PIW-1", Status: "stranded", Lon: 4.2, Lat: 60.1, AgeSeconds: 3600},
	}
	if err := om.WriteTrajectory(batch1); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteTrajectory(batch2); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteStep(StepRecord{Step: 1, Active: 1, Stranded: 1}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteTelemetry(WindowStats{WindowEnd: 1}); err != nil {
		t.Fatal(err)
	}
	if err := om.WritePerf(PerfStats{}, 1); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "trajectory.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(raw), "object_type"); n != 1 {
		t.Errorf("header appears %d times", n)
	}

	var back []TrajectoryRecord
	f, err := os.Open(filepath.Join(dir, "trajectory.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, &back); err != nil {
		t.Fatalf("UnmarshalFile: %v", err)
	}
	if len(back) != 3 {
		t.Fatalf("read %d records, want 3", len(back))
	}
	if back[2] != batch2[0] {
		t.Errorf("record = %+v, want %+v", back[2], batch2[0])
	}

	for _, name := range []string{"steps.csv", "telemetry.csv", "perf.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/pthm-cable/leeway/components"
	"github.com/pthm-cable/leeway/ensemble"
	"github.com/pthm-cable/leeway/systems"
)

func TestMetricsObserveStep(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.RecordSeed("PIW-1", 50)
	var counts ensemble.StatusCounts
	counts[components.StatusActive] = 45
	counts[components.StatusStranded] = 5
	at := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	m.ObserveStep(systems.StepStats{Stranded: 5, MissingData: 2}, counts, at, 3*time.Millisecond)
	m.ObserveStep(systems.StepStats{MissingData: 1}, counts, at.Add(time.Hour), time.Millisecond)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"seeded", m.Seeded.WithLabelValues("PIW-1"), 50},
		{"steps", m.Steps, 2},
		{"strandings", m.Strandings, 5},
		{"missing", m.MissingData, 3},
		{"active", m.Particles.WithLabelValues("active"), 45},
		{"stranded", m.Particles.WithLabelValues("stranded"), 5},
		{"initial", m.Particles.WithLabelValues("initial"), 0},
		{"sim time", m.SimTime, float64(at.Add(time.Hour).Unix())},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}

	if n := histogramSampleCount(t, reg, "leeway_step_duration_seconds"); n != 2 {
		t.Errorf("step duration samples = %d, want 2", n)
	}
	if v, ok := gaugeValue(t, reg, "leeway_particles", "status", "stranded"); !ok || v != 5 {
		t.Errorf("gathered stranded gauge = %v, %v", v, ok)
	}
}

func TestMetricsReRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second NewMetrics: %v", err)
	}
	first.Steps.Inc()
	if got := testutil.ToFloat64(second.Steps); got != 1 {
		t.Errorf("second collector sees %v steps, want shared counter", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	m.RecordSeed("SKIFF-1", 3)
	m.SetCounts(ensemble.StatusCounts{})

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{
		"leeway_steps_total",
		"leeway_particles_seeded_total",
		"leeway_particles",
		`object_type="SKIFF-1"`,
		`status="missing_data"`,
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %q in /metrics output", name)
		}
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordSeed("x", 1)
	m.ObserveStep(systems.StepStats{}, ensemble.StatusCounts{}, time.Now(), 0)
	m.SetCounts(ensemble.StatusCounts{})
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	mfs, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if h := m.GetHistogram(); h != nil {
				return h.GetSampleCount()
			}
		}
	}
	return 0
}

func gaugeValue(t *testing.T, gatherer prometheus.Gatherer, name, label, value string) (float64, bool) {
	t.Helper()

	mfs, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if hasLabel(m.GetLabel(), label, value) && m.GetGauge() != nil {
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

func hasLabel(pairs []*dto.LabelPair, name, value string) bool {
	for _, lp := range pairs {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

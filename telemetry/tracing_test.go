package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInitTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{Enabled: true, ServiceName: "leeway-test", Writer: &buf})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() { _, _ = InitTracing(ctx, TracingConfig{}) })

	_, span := Tracer().Start(ctx, "leeway.step")
	span.End()
	ShutdownWithTimeout(ctx, shutdown)

	out := buf.String()
	if !strings.Contains(out, "leeway.step") {
		t.Errorf("span not exported: %s", out)
	}
	if !strings.Contains(out, "leeway-test") {
		t.Errorf("service name missing from export: %s", out)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing produced a recording span")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestInitTracingRequiresWriter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true}); err == nil {
		t.Error("expected error without writer")
	}
}

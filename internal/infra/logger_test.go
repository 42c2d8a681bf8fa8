package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/illarion/keevault/internal/config"
)

func TestLoggerAddsTraceIDs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Otel.Enabled = true

	var buf bytes.Buffer
	logger := NewLogger(&cfg, &buf)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "vault unlocked", "vault", "demo")
	span.End()

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if record["trace"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace id missing: %v", record)
	}
	if record["vault"] != "demo" {
		t.Errorf("attributes lost: %v", record)
	}
}

func TestLoggerWithoutTracing(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Format = "text"
	cfg.Logging.Level = "warn"

	var buf bytes.Buffer
	logger := NewLogger(&cfg, &buf).With("component", "test")
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "msg=kept") || !strings.Contains(out, "component=test") || strings.Contains(out, "trace=") {
		t.Errorf("unexpected text output: %s", out)
	}
}

func TestInitTracerDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	tp, err := InitTracer(context.Background(), &cfg)
	if err != nil || tp != nil {
		t.Errorf("disabled tracing should return (nil, nil), got (%v, %v)", tp, err)
	}
}

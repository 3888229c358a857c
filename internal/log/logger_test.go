package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentBudget)
	logger.Info("budget saved", FieldCategory, "Food")

	out := buf.String()
	if !strings.Contains(out, "component=budget") || !strings.Contains(out, "category=Food") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestWithComponentReplacesTag(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP).With(FieldRequestID, "req-1").WithComponent(ComponentCharts)
	logger.Warn("render failed")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=charts") {
		t.Fatalf("expected a single charts component tag: %s", out)
	}
	if !strings.Contains(out, "request_id=req-1") {
		t.Fatalf("attributes lost on component switch: %s", out)
	}
	if logger.Component() != ComponentCharts {
		t.Fatalf("Component() = %q", logger.Component())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", l)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentHTTP).With(FieldRequestID, "req-42")

	ctx := NewContext(context.Background(), base)
	FromContext(ctx).Info("inside handler")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") || !strings.Contains(out, "component=http") {
		t.Fatalf("context logger missing fields: %s", out)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentTransaction))

	sl.LogTransactionWrite(context.Background(), OpCreate, 7, "expense", 1250, "Food")
	sl.LogError(context.Background(), "store failed", errors.New("disk full"), ComponentStorage, OpCreate, NewFields())

	out := buf.String()
	for _, want := range []string{"transaction_id=7", "amount_cents=1250", "operation=create", `error="disk full"`, "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}

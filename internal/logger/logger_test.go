package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInit(t *testing.T) {
	if logger := Init("chartd-test", slog.LevelDebug); logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if tid := TraceID(ctx); tid != "" {
		t.Errorf("unset context returned trace id %q", tid)
	}

	ctx = WithTraceID(ctx, "SBIN-1700000000000000000")
	if tid := TraceID(ctx); tid != "SBIN-1700000000000000000" {
		t.Errorf("round trip returned %q", tid)
	}
}

func TestGenerateTraceID(t *testing.T) {
	ts := time.Date(2026, 8, 26, 9, 15, 0, 987654321, time.UTC)
	tid := GenerateTraceID("SBIN", ts)

	if !strings.HasPrefix(tid, "SBIN-") {
		t.Errorf("trace id %q missing symbol prefix", tid)
	}
	if !strings.HasSuffix(tid, "987654321") {
		t.Errorf("trace id %q missing nano timestamp", tid)
	}
}

func TestLogWithTrace(t *testing.T) {
	if attrs := LogWithTrace(context.Background()); attrs != nil {
		t.Errorf("expected nil attrs without a trace id, got %v", attrs)
	}

	ctx := WithTraceID(context.Background(), "NIFTY-42")
	attrs := LogWithTrace(ctx)
	if len(attrs) != 1 {
		t.Fatalf("expected one attr, got %v", attrs)
	}
	attr, ok := attrs[0].(slog.Attr)
	if !ok || attr.Value.String() != "NIFTY-42" {
		t.Errorf("attr = %v", attrs[0])
	}
}

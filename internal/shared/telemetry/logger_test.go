package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Info("job.status", map[string]any{"job_id": int64(7), "status_transition": "queued->processing"})
	Debug("ignored", nil)
	Error("job.failed", map[string]any{"error": errors.New("boom")})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["job_id"] != int64(7) {
		t.Fatalf("unexpected job_id %v", ctx["job_id"])
	}
	if ctx["status_transition"] != "queued->processing" {
		t.Fatalf("unexpected transition %v", ctx["status_transition"])
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[1].Level)
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init(true, "chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	t.Cleanup(func() { SetLogger(nil) })
}

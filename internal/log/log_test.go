package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentWorker, Output: &buf})

	l.Debug("hidden")
	l.Info("Synced transaction", FieldTransactionID, 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec[FieldComponent] != ComponentWorker || rec[FieldTransactionID] != float64(7) {
		t.Errorf("record = %v", rec)
	}
}

func TestContext_RequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "text", Component: ComponentHTTP, Output: &buf})

	ctx := NewContext(context.Background(), base.With(FieldRequestID, "req-1"))
	FromContext(ctx).InfoContext(ctx, "handled")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "component=http") {
		t.Errorf("unexpected log line %q", out)
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("component = %q", l.Component())
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	sl.LogError(context.Background(), "restore failed", errors.New("disk full"), ComponentBackup, OpRestore, nil)

	out := buf.String()
	for _, want := range []string{"component=backup", "operation=restore", `error="disk full"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %q", want, out)
		}
	}
}

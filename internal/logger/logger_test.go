package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONFormatInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production", Level: slog.LevelInfo})

	log.Info("sync complete", "entity_type", "scene", "created", 12)

	out := buf.String()
	if !strings.HasPrefix(out, "{") {
		t.Fatalf("expected JSON output in production, got %q", out)
	}
	if !strings.Contains(out, `"entity_type":"scene"`) {
		t.Errorf("missing attribute in output: %q", out)
	}
}

func TestPrettyHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development", Level: slog.LevelDebug})

	log.Debug("fetch page", "page", 3)

	out := buf.String()
	if !strings.Contains(out, "fetch page") {
		t.Errorf("missing message: %q", out)
	}
	if !strings.Contains(out, "page=3") {
		t.Errorf("missing attribute: %q", out)
	}
}

func TestPrettyHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development", Level: slog.LevelWarn})

	log.Info("should be suppressed")
	if buf.Len() != 0 {
		t.Errorf("info record written despite warn level: %q", buf.String())
	}

	log.Warn("should appear")
	if buf.Len() == 0 {
		t.Error("warn record not written")
	}
}

func TestPrettyHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	log := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "sync")}))

	log.Info("run started")

	if !strings.Contains(buf.String(), "component=sync") {
		t.Errorf("pre-set attribute missing: %q", buf.String())
	}
}

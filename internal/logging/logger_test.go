package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWriter_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, slog.LevelInfo)
	log.Info("run failed", "error", errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "err=boom") {
		t.Errorf("expected err key, got %q", out)
	}
	if strings.Contains(out, "error=") {
		t.Errorf("error key not renamed: %q", out)
	}
}

func TestNewWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, slog.LevelWarn)
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}

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
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package slogutil

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lineage/internal/config"
)

func TestLoggerFactory_Console(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		cli       *slog.Level
		wantDebug bool
		wantJSON  bool
	}{
		{"config info", config.LoggingConfig{Format: "human", Level: "info"}, nil, false, false},
		{"config debug", config.LoggingConfig{Format: "human", Level: "debug"}, nil, true, false},
		{"cli overrides", config.LoggingConfig{Format: "human", Level: "error"}, levelPtr(slog.LevelDebug), true, false},
		{"json", config.LoggingConfig{Format: "json", Level: "debug"}, nil, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := NewLoggerFactory(t.TempDir(), tt.cfg)
			if tt.cli != nil {
				f.WithCLILevel(*tt.cli)
			}
			logger, err := f.Logger(&buf)
			if err != nil {
				t.Fatalf("Logger: %v", err)
			}
			defer f.Close()

			logger.Debug("debug line")
			logger.Error("error line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v: %s", got, tt.wantDebug, out)
			}
			if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %s", got, tt.wantJSON, out)
			}
		})
	}
}

func TestLoggerFactory_File(t *testing.T) {
	root := t.TempDir()
	cfg := config.LoggingConfig{Format: "human", Level: "debug", File: "logs/lineage.log", MaxSizeMB: 1, MaxBackups: 1}

	var console bytes.Buffer
	f := NewLoggerFactory(root, cfg).WithCLILevel(slog.LevelWarn)
	logger, err := f.Logger(&console)
	if err != nil {
		t.Fatalf("Logger: %v", err)
	}
	logger.Info("to the file only")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if strings.Contains(console.String(), "to the file only") {
		t.Error("info reached a warn-level console")
	}
	data, err := os.ReadFile(filepath.Join(root, ".lineage", "logs", "lineage.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "to the file only") {
		t.Errorf("log file = %q", data)
	}
}

func levelPtr(l slog.Level) *slog.Level {
	return &l
}

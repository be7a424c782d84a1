package slogutil

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandlerLine(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, nil)
	r := slog.NewRecord(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), slog.LevelInfo, "Integrated commit", 0)
	r.AddAttrs(slog.String("repo", "core"), slog.Int("revision", 42))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	want := "2024-01-02T10:00:00Z [info] Integrated commit | repo=core revision=42\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestHandlerValues(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"plain", slog.String("repo", "core"), "repo=core"},
		{"spaces", slog.String("reason", "commit out of order"), `reason="commit out of order"`},
		{"empty", slog.String("path", ""), `path=""`},
		{"pipe", slog.String("expr", "a|b"), `expr="a|b"`},
		{"bool", slog.Bool("journal", true), "journal=true"},
		{"duration", slog.Duration("took", 1500*time.Millisecond), "took=1.5s"},
		{"error", slog.Any("error", errors.New("disk full")), `error="disk full"`},
		{"group", slog.Group("run", slog.String("id", "r1"), slog.Int("commits", 3)), "run.id=r1 run.commits=3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(&buf, slog.LevelInfo).LogAttrs(context.Background(), slog.LevelInfo, "msg", tt.attr)
			if !strings.Contains(buf.String(), " | "+tt.want+"\n") {
				t.Errorf("got %q, want it to end in %q", buf.String(), tt.want)
			}
		})
	}
}

func TestHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	for _, tt := range []struct {
		text string
		want bool
	}{
		{"debug message", false},
		{"info message", false},
		{"[warn] warn message", true},
		{"[error] error message", true},
	} {
		if strings.Contains(out, tt.text) != tt.want {
			t.Errorf("%q present = %v, want %v in:\n%s", tt.text, !tt.want, tt.want, out)
		}
	}
}

func TestHandlerWithGroupAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, slog.LevelInfo)
	scoped := base.With("repo", "core").WithGroup("import").With("run", "r1")

	scoped.Info("done", "commits", 3)
	base.Info("unscoped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "| repo=core import.run=r1 import.commits=3") {
		t.Errorf("scoped line = %q", lines[0])
	}
	if strings.Contains(lines[1], "|") {
		t.Errorf("attributes leaked into the parent logger: %q", lines[1])
	}
}

func TestHandlerReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "token" {
				return slog.Attr{}
			}
			if len(groups) == 1 && groups[0] == "svn" && a.Key == "url" {
				return slog.String("url", "redacted")
			}
			return a
		},
	})
	slog.New(h).Info("fetch", "token", "secret", slog.Group("svn", slog.String("url", "https://svn")))

	out := buf.String()
	if strings.Contains(out, "secret") || !strings.Contains(out, "svn.url=redacted") {
		t.Errorf("got %q", out)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LevelFromString(tt.input); got != tt.expected {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		expected  slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{3, false, slog.LevelDebug},
		{0, true, slog.Level(100)},
		{5, true, slog.Level(100)},
	}
	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.expected {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.expected)
		}
	}
}

func TestTeeHandler(t *testing.T) {
	var verbose, terse bytes.Buffer
	logger := NewTeeLogger(
		NewHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelInfo}),
		NewHandler(&terse, &slog.HandlerOptions{Level: slog.LevelWarn}),
	).With("repo", "core")

	logger.Info("info message")
	logger.Warn("warn message")

	if strings.Count(verbose.String(), "repo=core") != 2 {
		t.Errorf("verbose = %q", verbose.String())
	}
	if strings.Contains(terse.String(), "info message") || !strings.Contains(terse.String(), "warn message") {
		t.Errorf("terse = %q", terse.String())
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger is enabled")
	}
}

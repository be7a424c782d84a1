package slogutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelSilent is above every level a record can carry
const LevelSilent = slog.Level(100)

// NewLogger creates a new slog.Logger in the lineage text format.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a logger that writes one JSON object per record.
func NewJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDiscardLogger creates a logger that drops every record.
func NewDiscardLogger() *slog.Logger {
	return slog.New(NewHandler(io.Discard, &slog.HandlerOptions{Level: LevelSilent}))
}

// FileOptions configures a rotated log file
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	JSON       bool
}

// NewFileHandler returns a handler writing to a size-rotated file, plus the
// closer for that file. The parent directory is created if needed.
func NewFileHandler(opts FileOptions, level slog.Level) (slog.Handler, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, nil, err
	}
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	hopts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		return slog.NewJSONHandler(w, hopts), w, nil
	}
	return NewHandler(w, hopts), w, nil
}

// LevelFromString parses a configured level name. "warning" is accepted
// next to the names slog knows; anything unparseable means info.
func LevelFromString(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LevelFromVerbosity maps the -v count and -q flag to a console level:
// warn by default, info at -v, debug from -vv on, nothing with -q.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return LevelSilent
	case verbosity <= 0:
		return slog.LevelWarn
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// NewTeeLogger creates a logger that hands every record to all handlers
// enabled for its level.
func NewTeeLogger(handlers ...slog.Handler) *slog.Logger {
	return slog.New(teeHandler(handlers))
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

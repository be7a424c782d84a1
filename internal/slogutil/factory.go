package slogutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"lineage/internal/config"
	"lineage/internal/paths"
)

// LoggerFactory builds loggers from the logging config.
// Precedence for the level: CLI flag > config (which already folds in
// LINEAGE_LOG_LEVEL) > info.
type LoggerFactory struct {
	repoRoot string
	cfg      config.LoggingConfig
	cliLevel slog.Level
	cliSet   bool
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory
func NewLoggerFactory(repoRoot string, cfg config.LoggingConfig) *LoggerFactory {
	return &LoggerFactory{repoRoot: repoRoot, cfg: cfg}
}

// WithCLILevel makes level override the configured one
func (f *LoggerFactory) WithCLILevel(level slog.Level) *LoggerFactory {
	f.cliLevel = level
	f.cliSet = true
	return f
}

// Logger writes to console and, when logging.file is set, also to a rotated
// file. A relative file path is resolved inside the repository data directory.
func (f *LoggerFactory) Logger(console io.Writer) (*slog.Logger, error) {
	level := f.effectiveLevel()
	jsonFormat := strings.EqualFold(f.cfg.Format, "json")

	var consoleHandler slog.Handler
	if jsonFormat {
		consoleHandler = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: level})
	} else {
		consoleHandler = NewHandler(console, &slog.HandlerOptions{Level: level})
	}
	if f.cfg.File == "" {
		return slog.New(consoleHandler), nil
	}

	path := f.cfg.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(paths.DataDir(f.repoRoot), path)
	}
	// the file keeps everything the configured level allows, even when the
	// console is quieter
	fileLevel := LevelFromString(f.cfg.Level)
	if f.cliSet && f.cliLevel < fileLevel {
		fileLevel = f.cliLevel
	}
	fileHandler, closer, err := NewFileHandler(FileOptions{
		Path:       path,
		MaxSizeMB:  f.cfg.MaxSizeMB,
		MaxBackups: f.cfg.MaxBackups,
		JSON:       jsonFormat,
	}, fileLevel)
	if err != nil {
		return nil, err
	}
	f.closers = append(f.closers, closer)
	return NewTeeLogger(consoleHandler, fileHandler), nil
}

// effectiveLevel returns the console log level
func (f *LoggerFactory) effectiveLevel() slog.Level {
	if f.cliSet {
		return f.cliLevel
	}
	if f.cfg.Level != "" {
		return LevelFromString(f.cfg.Level)
	}
	return slog.LevelInfo
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}

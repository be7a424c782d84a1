// Package slogutil provides the slog handler and logger setup used by lineage.
package slogutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Handler writes one line per record:
//
//	2024-01-02T10:00:00Z [info] Integrated commit | repo=core revision=42
//
// Attributes given through With are rendered once and reused. Group values
// are flattened into dotted keys.
type Handler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	prefix string // group path of keys added from here on, with trailing dot
	attrs  []byte // pre-rendered " key=value" pairs
	mu     *sync.Mutex
}

// NewHandler creates a new log handler. A nil opts logs at info level.
func NewHandler(w io.Writer, opts *slog.HandlerOptions) *Handler {
	h := &Handler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle formats and writes the log record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	if !r.Time.IsZero() {
		buf = r.Time.UTC().AppendFormat(buf, time.RFC3339)
		buf = append(buf, ' ')
	}
	buf = append(buf, '[')
	buf = append(buf, levelString(r.Level)...)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)

	attrs := h.attrs
	if r.NumAttrs() > 0 {
		attrs = append([]byte(nil), h.attrs...)
		r.Attrs(func(a slog.Attr) bool {
			attrs = h.appendAttr(attrs, h.prefix, a)
			return true
		})
	}
	if len(attrs) > 0 {
		buf = append(buf, " |"...)
		buf = append(buf, attrs...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs returns a handler that renders attrs on every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = append([]byte(nil), h.attrs...)
	for _, a := range attrs {
		h2.attrs = h.appendAttr(h2.attrs, h.prefix, a)
	}
	return &h2
}

// WithGroup returns a handler that prefixes later keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func (h *Handler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range group {
			buf = h.appendAttr(buf, prefix, ga)
		}
		return buf
	}
	if h.opts.ReplaceAttr != nil {
		var groups []string
		if prefix != "" {
			groups = strings.Split(strings.TrimSuffix(prefix, "."), ".")
		}
		a = h.opts.ReplaceAttr(groups, a)
		a.Value = a.Value.Resolve()
	}
	if a.Key == "" {
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return append(buf, formatValue(a.Value)...)
}

// levelString returns a lowercase string for the log level.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

// formatValue renders v, quoting strings that would break key=value parsing
func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return quoteIfNeeded(v.String())
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(err.Error())
		}
		return quoteIfNeeded(fmt.Sprint(v.Any()))
	default:
		return fmt.Sprint(v.Any())
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " =\"\n\t|") {
		return strconv.Quote(s)
	}
	return s
}

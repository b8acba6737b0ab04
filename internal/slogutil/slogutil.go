package slogutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// silent sits above every standard level.
const silent = slog.Level(100)

// NewLogger creates a logger using burrow's line format.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDiscardLogger creates a logger that drops everything. Handy in tests.
func NewDiscardLogger() *slog.Logger {
	return slog.New(NewHandler(io.Discard, &slog.HandlerOptions{Level: silent}))
}

// LevelFromString converts debug, info, warn(ing), error or silent, in any
// case. Anything else maps to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "silent":
		return silent
	default:
		return slog.LevelInfo
	}
}

// LevelFromVerbosity maps -v counts to a level: 0 warn, 1 info, 2+ debug.
// quiet wins over any verbosity.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		return silent
	}
	switch verbosity {
	case 0:
		return slog.LevelWarn
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Options selects where and how a logger writes.
type Options struct {
	Format string // "human" (default) or "json"
	Level  string
	// LevelValue overrides Level when set.
	LevelValue slog.Leveler
	// File receives every record at Level. Warnings and errors are still
	// copied to Stderr. Empty means Stderr only.
	File       string
	MaxSize    int64 // bytes; 0 turns rotation off
	MaxBackups int
	Stderr     io.Writer
}

// Open builds a logger from opts. The returned closer is nil when nothing
// needs closing.
func Open(opts Options) (*slog.Logger, io.Closer, error) {
	level := LevelFromString(opts.Level)
	if opts.LevelValue != nil {
		level = opts.LevelValue.Level()
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if opts.File == "" {
		return slog.New(formatHandler(stderr, opts.Format, level)), nil, nil
	}

	rf, err := OpenRotatingFile(opts.File, opts.MaxSize, opts.MaxBackups)
	if err != nil {
		return nil, nil, err
	}
	console := NewHandler(stderr, &slog.HandlerOptions{Level: max(level, slog.LevelWarn)})
	return slog.New(NewTeeHandler(formatHandler(rf, opts.Format, level), console)), rf, nil
}

func formatHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return NewHandler(w, &slog.HandlerOptions{Level: level})
}

// TeeHandler fans each record out to every handler enabled for its level.
type TeeHandler struct {
	handlers []slog.Handler
}

// NewTeeHandler combines handlers. Each keeps its own level.
func NewTeeHandler(handlers ...slog.Handler) *TeeHandler {
	return &TeeHandler{handlers: handlers}
}

func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle returns the first error but still offers the record to every handler.
func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t *TeeHandler) WithGroup(name string) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t *TeeHandler) derive(fn func(slog.Handler) slog.Handler) *TeeHandler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = fn(h)
	}
	return &TeeHandler{handlers: next}
}

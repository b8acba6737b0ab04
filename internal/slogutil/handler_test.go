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

var at = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// line renders one record through a fresh Handler.
func line(t *testing.T, h func(*Handler) slog.Handler, level slog.Level, msg string, args ...any) string {
	t.Helper()
	var buf bytes.Buffer
	var handler slog.Handler = NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	if h != nil {
		handler = h(handler.(*Handler))
	}
	r := slog.NewRecord(at, level, msg, 0)
	r.Add(args...)
	if err := handler.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	return buf.String()
}

func TestHandler_Line(t *testing.T) {
	tests := []struct {
		name  string
		h     func(*Handler) slog.Handler
		level slog.Level
		msg   string
		args  []any
		want  string
	}{
		{
			name: "no attrs", level: slog.LevelInfo, msg: "Server stopped gracefully",
			want: "2026-03-02T10:00:00Z [info] Server stopped gracefully\n",
		},
		{
			name: "attrs in order", level: slog.LevelWarn, msg: "Request body too large",
			args: []any{"limit", 1024, "path", "/upload"},
			want: "2026-03-02T10:00:00Z [warn] Request body too large | limit=1024 path=/upload\n",
		},
		{
			name: "value kinds", level: slog.LevelDebug, msg: "Session swept",
			args: []any{"ttl", 90 * time.Second, "expires", at.Add(time.Hour), "ok", true},
			want: "2026-03-02T10:00:00Z [debug] Session swept | ttl=1m30s expires=2026-03-02T11:00:00Z ok=true\n",
		},
		{
			name: "error value", level: slog.LevelError, msg: "Server error",
			args: []any{"error", errors.New("listen tcp: address in use")},
			want: "2026-03-02T10:00:00Z [error] Server error | error=listen tcp: address in use\n",
		},
		{
			name: "handler attrs first", level: slog.LevelInfo, msg: "Route added",
			h:    func(h *Handler) slog.Handler { return h.WithAttrs([]slog.Attr{slog.Int("routes", 4)}) },
			args: []any{"pattern", "^static/"},
			want: "2026-03-02T10:00:00Z [info] Route added | routes=4 pattern=^static/\n",
		},
		{
			name: "nested groups", level: slog.LevelInfo, msg: "Frozen",
			h:    func(h *Handler) slog.Handler { return h.WithGroup("router").WithGroup("table") },
			args: []any{"size", 2},
			want: "2026-03-02T10:00:00Z [info] Frozen | router.table.size=2\n",
		},
		{
			name: "empty group ignored", level: slog.LevelInfo, msg: "Frozen",
			h:    func(h *Handler) slog.Handler { return h.WithGroup("") },
			args: []any{"size", 2},
			want: "2026-03-02T10:00:00Z [info] Frozen | size=2\n",
		},
		{
			name: "custom levels round down", level: slog.LevelWarn + 2, msg: "Odd level",
			want: "2026-03-02T10:00:00Z [warn] Odd level\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := line(t, tt.h, tt.level, tt.msg, tt.args...); got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestHandler_DynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	var lv slog.LevelVar
	lv.Set(slog.LevelWarn)
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: &lv}))

	logger.Info("before")
	lv.Set(slog.LevelDebug)
	logger.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") || !strings.Contains(out, "[debug] after") {
		t.Errorf("level change not honored: %q", out)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"Info":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"silent":  silent,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range tests {
		if got := LevelFromString(input); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{4, false, slog.LevelDebug},
		{2, true, silent},
	}
	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.want {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.want)
		}
	}
}

func TestDiscardLoggerDisabled(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled at any level")
	}
}

func TestTeeHandler(t *testing.T) {
	var file, console bytes.Buffer
	tee := NewTeeHandler(
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
		NewHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(tee).With("component", "server")

	if !tee.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("tee should be enabled when any handler is")
	}

	logger.Debug("dispatch", "path", "/a")
	logger.Warn("slow handler", "path", "/b")

	if !strings.Contains(file.String(), `"msg":"dispatch"`) || !strings.Contains(file.String(), `"component":"server"`) {
		t.Errorf("json side: %q", file.String())
	}
	if strings.Contains(console.String(), "dispatch") {
		t.Errorf("console got a debug record: %q", console.String())
	}
	if !strings.Contains(console.String(), "[warn] slow handler | component=server path=/b") {
		t.Errorf("console side: %q", console.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTeeHandler_ErrorDoesNotStarveOthers(t *testing.T) {
	var ok bytes.Buffer
	logger := slog.New(NewTeeHandler(
		NewHandler(failingWriter{}, nil),
		NewHandler(&ok, nil),
	))
	logger.Info("still delivered")
	if !strings.Contains(ok.String(), "still delivered") {
		t.Errorf("second handler output: %q", ok.String())
	}
}

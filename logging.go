package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// levelRouter is a slog.Handler that sends WARN and above to the console and
// every enabled record to an optional log file.
type levelRouter struct {
	console  slog.Handler
	file     slog.Handler
	minLevel slog.Level
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	if lr.file != nil {
		return level >= lr.minLevel
	}
	return level >= max(lr.minLevel, slog.LevelWarn)
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if lr.file != nil {
		if err := lr.file.Handle(ctx, r); err != nil {
			return err
		}
	}
	if r.Level >= slog.LevelWarn {
		return lr.console.Handle(ctx, r)
	}
	return nil
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &levelRouter{console: lr.console.WithAttrs(attrs), minLevel: lr.minLevel}
	if lr.file != nil {
		out.file = lr.file.WithAttrs(attrs)
	}
	return out
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	out := &levelRouter{console: lr.console.WithGroup(name), minLevel: lr.minLevel}
	if lr.file != nil {
		out.file = lr.file.WithGroup(name)
	}
	return out
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// setupLogger configures structured logging. WARN and ERROR go to stderr. If
// logPath is non-empty, every record at level or above is also appended to
// that file. Returns a cleanup function that closes the log file.
func setupLogger(console io.Writer, logPath, level string) (func(), error) {
	minLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: minLevel}

	cleanup := func() {}
	handler := &levelRouter{
		console:  slog.NewTextHandler(console, opts),
		minLevel: minLevel,
	}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		handler.file = slog.NewTextHandler(f, opts)
	}

	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

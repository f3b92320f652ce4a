// Package logging builds the process logger from config: slog handlers for
// console and file sinks, with ANSI line coloring for interactive consoles.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"metricq/internal/config"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBlue    = "\x1b[34m"
	ansiGreen   = "\x1b[32m"
	ansiCyan    = "\x1b[36m"
	ansiYellow  = "\x1b[33m"
	ansiRed     = "\x1b[31m"
	ansiMagenta = "\x1b[35m"
)

// colorLineWriter colorizes logfmt lines before forwarding them.
// Params: dst destination writer.
// Returns: writer usable as an slog handler output.
type colorLineWriter struct {
	dst io.Writer
}

// Write colorizes one log line. Lines without a known level= token pass
// through untouched.
// Params: p one rendered log line.
// Returns: len(p) on success so the handler never retries.
func (w *colorLineWriter) Write(p []byte) (int, error) {
	line := string(p)
	hasNewline := strings.HasSuffix(line, "\n")
	trimmed := strings.TrimSuffix(line, "\n")

	base := levelColor(trimmed)
	if base == "" {
		return w.dst.Write(p)
	}

	var b strings.Builder
	b.WriteString(base)
	for i, token := range strings.Split(trimmed, " ") {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeToken(&b, token, base)
	}
	b.WriteString(ansiReset)
	if hasNewline {
		b.WriteByte('\n')
	}

	if _, err := io.WriteString(w.dst, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeToken renders one key=value token, coloring the value by shape.
func writeToken(b *strings.Builder, token string, base string) {
	key, value, found := strings.Cut(token, "=")
	if !found {
		b.WriteString(token)
		return
	}

	color := ""
	switch {
	case strings.HasPrefix(value, `"`):
		color = ansiGreen
	case isIPv4(value):
		color = ansiCyan
	case isNumber(value):
		color = ansiYellow
	}

	b.WriteString(key)
	b.WriteByte('=')
	if color == "" {
		b.WriteString(value)
		return
	}
	b.WriteString(color)
	b.WriteString(value)
	b.WriteString(ansiReset)
	b.WriteString(base)
}

// levelColor picks the base line color from the level= token.
// Params: line one rendered logfmt line.
// Returns: ANSI sequence or "" for unknown levels.
func levelColor(line string) string {
	for _, token := range strings.Split(line, " ") {
		value, found := strings.CutPrefix(token, "level=")
		if !found {
			continue
		}
		switch value {
		case "DEBUG":
			return ansiMagenta
		case "INFO":
			return ansiBlue
		case "WARN":
			return ansiYellow
		case "ERROR":
			return ansiRed
		}
		return ""
	}
	return ""
}

func isIPv4(value string) bool {
	ip := net.ParseIP(value)
	return ip != nil && ip.To4() != nil
}

func isNumber(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// NewLogger builds the process logger from the log config.
// Params: cfg console/file sink settings.
// Returns: logger, a close func for the file sink, or an error.
func NewLogger(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	var handlers []slog.Handler
	closeFile := func() error { return nil }

	if cfg.Console.Enabled {
		handlers = append(handlers, newSinkHandler(os.Stderr, cfg.Console, true))
	}
	if cfg.File.Enabled {
		file, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", cfg.File.Path, err)
		}
		closeFile = file.Close
		handlers = append(handlers, newSinkHandler(file, cfg.File, false))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closeFile, nil
	case 1:
		return slog.New(handlers[0]), closeFile, nil
	default:
		return slog.New(multiHandler(handlers)), closeFile, nil
	}
}

// newSinkHandler builds one slog handler for a sink.
// Params: out destination; sink config; colorize enables ANSI coloring for
// line format.
// Returns: configured handler.
func newSinkHandler(out io.Writer, sink config.LogSinkConfig, colorize bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(sink.Level)}
	if sink.Format == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	if colorize {
		out = &colorLineWriter{dst: out}
	}
	return slog.NewTextHandler(out, opts)
}

// parseLevel maps config level names onto slog levels.
// Params: level lower-case level name.
// Returns: slog level, info for unknown values.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// multiHandler fans records out to all sinks.
type multiHandler []slog.Handler

func (h multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range h {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(multiHandler, len(h))
	for i, handler := range h {
		next[i] = handler.WithAttrs(attrs)
	}
	return next
}

func (h multiHandler) WithGroup(name string) slog.Handler {
	next := make(multiHandler, len(h))
	for i, handler := range h {
		next[i] = handler.WithGroup(name)
	}
	return next
}

// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects where and how the process logs.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // optional; appended to in addition to the base writer
}

// New returns a logger writing to w (stderr when nil) and, if opts.File is
// set, to that file as well. The returned close function releases the file.
// Standard output is never used: the stdio transport owns it.
func New(w io.Writer, opts Options) (*slog.Logger, func() error, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closeFn = f.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, handlerOpts)
	case "json":
		h = slog.NewJSONHandler(w, handlerOpts)
	default:
		_ = closeFn()
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return slog.New(h), closeFn, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

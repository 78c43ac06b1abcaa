// Package logging builds the process logger: a text handler on stdout and,
// when a directory is given, a debug-level log file per process start.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel converts error|warn|info|debug into a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}

// Logger is a configured logger plus the log file it writes to, if any
type Logger struct {
	*slog.Logger
	File string

	closer io.Closer
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Setup creates the logger and installs it as the slog default.
// The console follows level; the file under dir always records debug.
func Setup(level, dir string) (*Logger, error) {
	return setup(os.Stdout, level, dir, time.Now())
}

func setup(console io.Writer, level, dir string, now time.Time) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: lvl}),
	}

	out := &Logger{}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		out.File = filepath.Join(dir, fmt.Sprintf("logs_%s.txt", now.Format("20060102_150405")))
		f, err := os.OpenFile(out.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out.closer = f
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if len(handlers) == 1 {
		out.Logger = slog.New(handlers[0])
	} else {
		out.Logger = slog.New(slogmulti.Fanout(handlers...))
	}
	slog.SetDefault(out.Logger)

	out.Info("Logging started",
		"level", lvl.String(),
		"file", out.File,
		"os", runtime.GOOS,
		"arch", runtime.GOARCH,
		"go", runtime.Version())

	return out, nil
}

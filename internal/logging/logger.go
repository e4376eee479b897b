package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Level mirrors the small set of levels the configuration file accepts.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// New builds the server's structured logger. When path is empty, logs go
// to stderr; otherwise they're appended to the given file so a long-running
// server doesn't lose history across restarts.
func New(path string, level Level) (*slog.Logger, func() error, error) {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open log file %q: %w", path, err)
		}
		w = f
		closer = f.Close
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelToSlog(level)})
	return slog.New(handler), closer, nil
}

func levelToSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

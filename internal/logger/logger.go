package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs a text slog logger at the given level as the process default
// and returns it.
func Init(level string) *slog.Logger {
	return InitWithWriter(os.Stderr, level)
}

// InitWithWriter is Init writing to w.
func InitWithWriter(w io.Writer, level string) *slog.Logger {
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(log)
	return log
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child of log tagged with the component name.
// A nil log falls back to slog.Default().
func Component(log *slog.Logger, name string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With("component", name)
}

// Discard is a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

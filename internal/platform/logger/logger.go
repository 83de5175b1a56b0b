package logger

import (
	"log/slog"
	"os"
)

// New returns the structured logger every component shares. Level defaults
// to info; JAPA_LOG_LEVEL=debug flips on debug output.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("JAPA_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

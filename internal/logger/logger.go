package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON on stdout, one line
// per event.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

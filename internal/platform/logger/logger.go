package logger

import (
	"log/slog"
	"os"
)

// New returns the default structured logger. JSON output so log aggregation
// can index the stage/system attributes the orchestrator attaches.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output so log shippers
// can index request_id and declaration_id attributes.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

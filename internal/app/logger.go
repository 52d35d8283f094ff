package app

import (
	"log/slog"
	"os"
	"strings"

	"driverlink/internal/logx"
)

// NewLogger builds the process-wide JSON logger. LOG_LEVEL=debug turns on
// debug records, anything else logs at info.
func NewLogger() logx.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	base := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	return logx.NewSlogAdapter(base)
}

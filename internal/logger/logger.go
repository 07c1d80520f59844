package logger

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

type Logger = *slog.Logger

func NewLogger(w io.Writer, level slog.Level) Logger {
	return slog.New(newConsoleHandler(w, level))
}

// NewLoggerWithSentry creates a logger that auto-reports errors to Sentry
func NewLoggerWithSentry(w io.Writer, level slog.Level) Logger {
	return slog.New(NewSentryHandler(newConsoleHandler(w, level)))
}

func newConsoleHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
}

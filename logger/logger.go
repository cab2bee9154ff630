package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type Options struct {
	Level      slog.Leveler
	Writer     io.Writer // default os.Stdout
	TimeFormat string    // default time.Kitchen
	NoColor    bool
}

// Init installs a tint handler as the slog default and returns it.
func Init(opts Options) *slog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = time.Kitchen
	}

	l := slog.New(tint.NewHandler(writer, &tint.Options{
		Level:      opts.Level,
		TimeFormat: timeFormat,
		NoColor:    opts.NoColor,
	}))
	slog.SetDefault(l)
	return l
}

// ParseLevel maps debug, info, warn and error; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Fatal logs an error then exits.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

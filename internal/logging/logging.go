// Package logging configures the application wide slog loggers.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable
// loggers. JSON output goes to stdout, text output to stderr. The structured
// logger becomes the process default.
func Init(level slog.Level) {
	structuredLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	}))

	humanReadableLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	}))

	slog.SetDefault(structuredLogger)
}

// ForService returns a logger tagged with the originating service name.
// Falls back to the process default when Init has not been called, so unit
// tests don't need logging setup.
func ForService(service string) *slog.Logger {
	if structuredLogger == nil {
		return slog.Default().With("service", service)
	}
	return structuredLogger.With("service", service)
}

// HumanReadable returns the text format logger for operator facing output.
func HumanReadable() *slog.Logger {
	if humanReadableLogger == nil {
		return slog.Default()
	}
	return humanReadableLogger
}

// NewFileLogger creates a logger writing JSON records to the given path with
// size based rotation. The returned closer stops the underlying writer.
func NewFileLogger(path, service string, level slog.Level) (*slog.Logger, func() error) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	handler := slog.NewJSONHandler(io.MultiWriter(rotator), &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})

	return slog.New(handler).With("service", service), rotator.Close
}

// Package logger provides the single slog-based logger shared by the
// clock and instrument packages and the demo command.
package logger

import (
	"fmt"
	"log/slog"
	"os"
)

var globalLogger *slog.Logger

// InitLogger configures the global logger at the given level ("debug",
// "info", "warn", or "error"). Adapted from the teacher repo's
// pkg/logger.InitLogger (same slog.NewTextHandler/SetDefault wiring),
// shared here across the clock and instrument packages instead
// of one engine-internal call site.
func InitLogger(level string) error {
	var slogLevel slog.Level

	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return nil
}

// GetLogger returns the global logger, falling back to slog.Default()
// if InitLogger was never called.
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// LogDebug logs a formatted message at debug level.
func LogDebug(format string, args ...any) {
	GetLogger().Debug(fmt.Sprintf(format, args...))
}

// LogInfo logs a formatted message at info level.
func LogInfo(format string, args ...any) {
	GetLogger().Info(fmt.Sprintf(format, args...))
}

// LogWarn logs a formatted message at warn level.
func LogWarn(format string, args ...any) {
	GetLogger().Warn(fmt.Sprintf(format, args...))
}

// LogError logs a formatted message at error level.
func LogError(format string, args ...any) {
	GetLogger().Error(fmt.Sprintf(format, args...))
}

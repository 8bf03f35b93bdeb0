// Package log provides the structured logging interface used across wagewizard.
//
// The Logger interface is a minimal, slog-compatible surface so that the
// training pipeline, the HTTP server and the CLI can log with ML-specific
// attributes without caring which backend writes the records. Two backends
// are provided: log/slog with a JSON handler for machine-readable output, and
// zerolog's console writer for interactive training runs.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ModelNameKey, "MLPRegressor",
//	    log.ComponentKey, "training",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1058,
//	    log.FeaturesKey, 25,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key-value pairs. An error placed where a key is
// expected is logged under ErrAttrKey, which lets the error handler attach
// a stack trace.
type Logger interface {
	// Debug logs detailed diagnostic information such as per-epoch losses.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	//
	// Example:
	//   logger.Info("Model evaluated",
	//       log.MAEKey, 812.4,
	//       log.R2ScoreKey, 0.93,
	//   )
	Info(msg string, fields ...any)

	// Warn logs potentially problematic situations that do not stop execution.
	Warn(msg string, fields ...any)

	// Error logs error conditions.
	//
	// Example:
	//   logger.Error("Training failed",
	//       err,
	//       log.OperationKey, log.OperationFit,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	werrors "github.com/YuminosukeSato/wagewizard/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// Output formats accepted by SetupLogger.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures SetupLogger.
type Options struct {
	Level  string    // debug, info, warn or error
	Format string    // json or console
	Output io.Writer // defaults to os.Stdout
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewSlogLogger(slog.Default())
)

// SetupLogger builds the process logger from opts, installs it as the global
// logger and routes library warnings to it.
//
// The json format uses slog with attribute names mapped to the Cloud Logging
// layout. The console format uses zerolog's human readable writer.
func SetupLogger(opts Options) (Logger, error) {
	level, err := ToLogLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var logger Logger
	switch opts.Format {
	case "", FormatJSON:
		ops := slog.HandlerOptions{
			AddSource: true,
			Level:     level,
			// Replace attributes to convert to CloudLogging format.
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.LevelKey:
					attr = slog.Attr{Key: "severity", Value: attr.Value}
				case slog.MessageKey:
					attr = slog.Attr{Key: "message", Value: attr.Value}
				case slog.SourceKey:
					attr = slog.Attr{Key: "logging.googleapis.com/sourceLocation", Value: attr.Value}
				}
				return attr
			},
		}
		sl := slog.New(withStacktrace(slog.NewJSONHandler(out, &ops)))
		slog.SetDefault(sl)
		logger = NewSlogLogger(sl)
	case FormatConsole:
		zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).
			Level(toZerologLevel(level)).
			With().Timestamp().Logger()
		logger = NewZerologLogger(zl)
	default:
		return nil, werrors.NewValidationError("log.format", "must be json or console", opts.Format)
	}

	SetLogger(logger)
	return logger, nil
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (slog.Level, error) {
	switch level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, werrors.NewValidationError("log.level", "must be debug, info, warn or error", level)
	}
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// GetLoggerWithName returns the global logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLogger replaces the global logger. Warnings raised through
// pkg/errors.Warn are logged on it at warn level.
func SetLogger(l Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()

	werrors.SetStructuredWarnFunc(func(w error) {
		l.Warn(w.Error(), WarningKey, w, ErrorTypeKey, fmt.Sprintf("%T", w))
	})
}

// eachField walks alternating key-value pairs. An error or slog.Attr in key
// position is consumed on its own.
func eachField(fields []any, fn func(key string, value any)) {
	for i := 0; i < len(fields); {
		switch f := fields[i].(type) {
		case error:
			fn(ErrAttrKey, f)
			i++
			continue
		case slog.Attr:
			fn(f.Key, f.Value.Any())
			i++
			continue
		}
		if i+1 >= len(fields) {
			fn("!BADKEY", fields[i])
			return
		}
		fn(fmt.Sprint(fields[i]), fields[i+1])
		i += 2
	}
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps a *slog.Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) attrs(fields []any) []any {
	out := make([]any, 0, len(fields))
	eachField(fields, func(key string, value any) {
		out = append(out, slog.Any(key, value))
	})
	return out
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, s.attrs(fields)...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, s.attrs(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, s.attrs(fields)...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, s.attrs(fields)...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(s.attrs(fields)...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

// zerologLogger adapts zerolog.Logger to Logger.
type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps a zerolog.Logger.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

func (z *zerologLogger) write(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	eachField(fields, func(key string, value any) {
		switch v := value.(type) {
		case zerolog.LogObjectMarshaler:
			e.Object(key, v)
		case error:
			e.AnErr(key, v)
		default:
			e.Interface(key, v)
		}
	})
	e.Msg(msg)
}

func (z *zerologLogger) Debug(msg string, fields ...any) { z.write(z.l.Debug(), msg, fields) }
func (z *zerologLogger) Info(msg string, fields ...any)  { z.write(z.l.Info(), msg, fields) }
func (z *zerologLogger) Warn(msg string, fields ...any)  { z.write(z.l.Warn(), msg, fields) }
func (z *zerologLogger) Error(msg string, fields ...any) { z.write(z.l.Error(), msg, fields) }

func (z *zerologLogger) With(fields ...any) Logger {
	ctx := z.l.With()
	eachField(fields, func(key string, value any) {
		ctx = ctx.Interface(key, value)
	})
	return &zerologLogger{l: ctx.Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return z.l.GetLevel() <= toZerologLevel(slog.Level(level))
}

func toZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level <= slog.LevelDebug:
		return zerolog.DebugLevel
	case level <= slog.LevelInfo:
		return zerolog.InfoLevel
	case level <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

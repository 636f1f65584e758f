package rcache

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel defines the severity level for logging
type LogLevel int

const (
	// LogLevelDebug enables all log messages including detailed debugging
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables informational messages and above
	LogLevelInfo

	// LogLevelWarn enables warning messages and above
	LogLevelWarn

	// LogLevelError enables only error messages
	LogLevelError

	// LogLevelNone disables all logging
	LogLevelNone
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses debug, info, warn(ing), error or none, ignoring case
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none", "off":
		return LogLevelNone, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	case LogLevelNone:
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger defines the interface for cache logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F is a convenience function to create a logging field
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// LogrusLogger implements Logger on top of a logrus entry
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewDefaultLogger creates a text logger on stdout at the given level
func NewDefaultLogger(level LogLevel) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(level.logrusLevel())
	if level == LogLevelNone {
		l.SetOutput(io.Discard)
	}
	return NewLogrusLogger(l)
}

// NewLogrusLogger adapts an existing logrus logger
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{entry: logrus.NewEntry(l).WithField("component", "rcache")}
}

// Debug logs a debug message
func (ll *LogrusLogger) Debug(msg string, fields ...Field) {
	ll.withFields(fields).Debug(msg)
}

// Info logs an info message
func (ll *LogrusLogger) Info(msg string, fields ...Field) {
	ll.withFields(fields).Info(msg)
}

// Warn logs a warning message
func (ll *LogrusLogger) Warn(msg string, fields ...Field) {
	ll.withFields(fields).Warn(msg)
}

// Error logs an error message
func (ll *LogrusLogger) Error(msg string, fields ...Field) {
	ll.withFields(fields).Error(msg)
}

// With creates a new logger with additional fields
func (ll *LogrusLogger) With(fields ...Field) Logger {
	return &LogrusLogger{entry: ll.withFields(fields)}
}

func (ll *LogrusLogger) withFields(fields []Field) *logrus.Entry {
	if len(fields) == 0 {
		return ll.entry
	}
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return ll.entry.WithFields(data)
}

// NoOpLogger is a logger that does nothing - useful for disabling logging
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards all messages
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (nol *NoOpLogger) Debug(string, ...Field) {}
func (nol *NoOpLogger) Info(string, ...Field)  {}
func (nol *NoOpLogger) Warn(string, ...Field)  {}
func (nol *NoOpLogger) Error(string, ...Field) {}
func (nol *NoOpLogger) With(...Field) Logger   { return nol }

// LoggingConfig defines configuration for cache event logging
type LoggingConfig struct {
	Logger Logger

	// LogCacheHits enables logging of cache hit events
	LogCacheHits bool

	// LogCacheMisses enables logging of cache miss events
	LogCacheMisses bool

	// LogInvalidations enables logging of invalidation events
	LogInvalidations bool

	// LogErrors enables logging of backend and serialization failures
	LogErrors bool

	// IncludeValues adds decoded hit values to hit logs (may be verbose)
	IncludeValues bool

	// MaxValueLength limits the length of values included in logs
	MaxValueLength int

	// ContextKeys are looked up in the call context and logged when present
	ContextKeys []any
}

// NewDefaultLoggingConfig creates a logging configuration with sensible defaults
func NewDefaultLoggingConfig(level LogLevel) *LoggingConfig {
	return &LoggingConfig{
		Logger:           NewDefaultLogger(level),
		LogCacheHits:     true,
		LogCacheMisses:   true,
		LogInvalidations: true,
		LogErrors:        true,
		MaxValueLength:   100,
	}
}

// CreateLoggingHooks creates a set of hooks that implement cache event logging
func CreateLoggingHooks(config *LoggingConfig) *Hooks {
	if config == nil || config.Logger == nil {
		return &Hooks{}
	}

	hooks := &Hooks{}
	logger := config.Logger

	contextFields := func(ctx context.Context, fields []Field) []Field {
		if ctx == nil {
			return fields
		}
		for _, k := range config.ContextKeys {
			if v := ctx.Value(k); v != nil {
				fields = append(fields, F(fmt.Sprint(k), v))
			}
		}
		return fields
	}

	if config.LogCacheHits {
		hooks.AddOnHit(func(ctx context.Context, key string, value any, args Args) {
			fields := []Field{F("key", key), F("event", "cache_hit")}
			if config.IncludeValues {
				fields = append(fields, F("value", truncateValue(fmt.Sprintf("%v", value), config.MaxValueLength)))
			}
			logger.Debug("Cache hit", contextFields(ctx, fields)...)
		})
	}

	if config.LogCacheMisses {
		hooks.AddOnMiss(func(ctx context.Context, key string, args Args) {
			fields := []Field{F("key", key), F("event", "cache_miss")}
			logger.Info("Cache miss", contextFields(ctx, fields)...)
		})
	}

	if config.LogInvalidations {
		hooks.AddOnInvalidate(func(ctx context.Context, key string, args Args) {
			fields := []Field{F("key", key), F("event", "cache_invalidate")}
			logger.Info("Cache invalidation", contextFields(ctx, fields)...)
		})
	}

	if config.LogErrors {
		hooks.AddOnError(func(ctx context.Context, key string, err error) {
			fields := []Field{F("key", key), F("event", "cache_error"), F("error", err)}
			logger.Error("Cache operation failed", contextFields(ctx, fields)...)
		})
	}

	return hooks
}

// LoggingHookBuilder provides a fluent interface for creating logging hooks
type LoggingHookBuilder struct {
	config *LoggingConfig
}

// NewLoggingHookBuilder creates a new logging hook builder
func NewLoggingHookBuilder() *LoggingHookBuilder {
	return &LoggingHookBuilder{
		config: &LoggingConfig{
			Logger:         NewNoOpLogger(),
			MaxValueLength: 100,
		},
	}
}

// WithLogger sets the logger to use
func (lhb *LoggingHookBuilder) WithLogger(logger Logger) *LoggingHookBuilder {
	lhb.config.Logger = logger
	return lhb
}

// WithLevel sets the logging level (creates a default logger)
func (lhb *LoggingHookBuilder) WithLevel(level LogLevel) *LoggingHookBuilder {
	lhb.config.Logger = NewDefaultLogger(level)
	return lhb
}

// EnableHitLogging enables cache hit logging
func (lhb *LoggingHookBuilder) EnableHitLogging() *LoggingHookBuilder {
	lhb.config.LogCacheHits = true
	return lhb
}

// EnableMissLogging enables cache miss logging
func (lhb *LoggingHookBuilder) EnableMissLogging() *LoggingHookBuilder {
	lhb.config.LogCacheMisses = true
	return lhb
}

// EnableInvalidationLogging enables invalidation logging
func (lhb *LoggingHookBuilder) EnableInvalidationLogging() *LoggingHookBuilder {
	lhb.config.LogInvalidations = true
	return lhb
}

// EnableErrorLogging enables failure logging
func (lhb *LoggingHookBuilder) EnableErrorLogging() *LoggingHookBuilder {
	lhb.config.LogErrors = true
	return lhb
}

// EnableAllLogging enables all types of cache event logging
func (lhb *LoggingHookBuilder) EnableAllLogging() *LoggingHookBuilder {
	lhb.config.LogCacheHits = true
	lhb.config.LogCacheMisses = true
	lhb.config.LogInvalidations = true
	lhb.config.LogErrors = true
	return lhb
}

// IncludeValues enables including hit values in logs
func (lhb *LoggingHookBuilder) IncludeValues(maxLength int) *LoggingHookBuilder {
	lhb.config.IncludeValues = true
	lhb.config.MaxValueLength = maxLength
	return lhb
}

// WithContextKeys logs the given context values with every event
func (lhb *LoggingHookBuilder) WithContextKeys(keys ...any) *LoggingHookBuilder {
	lhb.config.ContextKeys = append(lhb.config.ContextKeys, keys...)
	return lhb
}

// Build creates the hooks configured by this builder
func (lhb *LoggingHookBuilder) Build() *Hooks {
	return CreateLoggingHooks(lhb.config)
}

func truncateValue(value string, maxLength int) string {
	if maxLength <= 3 || len(value) <= maxLength {
		return value
	}
	return value[:maxLength-3] + "..."
}

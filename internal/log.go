package internal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

var zerologLevels = map[LogLevel]zerolog.Level{
	LogLevelError: zerolog.ErrorLevel,
	LogLevelWarn:  zerolog.WarnLevel,
	LogLevelInfo:  zerolog.InfoLevel,
	LogLevelDebug: zerolog.DebugLevel,
	LogLevelTrace: zerolog.TraceLevel,
}

// ParseLogLevel maps ERROR/WARN/INFO/DEBUG/TRACE (any case) to a level.
// Unknown names fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN", "WARNING":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	}
	return LogLevelInfo
}

// Logger provides leveled logging on top of zerolog
type Logger struct {
	level LogLevel
	zl    zerolog.Logger
}

// NewLogger creates a console logger on stderr with the specified level
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
}

// NewJSONLogger writes one JSON object per line, for server deployments
func NewJSONLogger(w io.Writer, level LogLevel) *Logger {
	return NewLoggerWithWriter(w, level)
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(w io.Writer, level LogLevel) *Logger {
	zl := zerolog.New(w).
		Level(zerologLevels[level]).
		With().
		Timestamp().
		Logger()
	return &Logger{level: level, zl: zl}
}

// NewDefaultLogger creates a logger based on the LOG_LEVEL and LOG_FORMAT
// environment variables.
func NewDefaultLogger() *Logger {
	level := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		return NewJSONLogger(os.Stderr, level)
	}
	return NewLogger(level)
}

// With returns a child logger carrying an extra field
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{level: l.level, zl: l.zl.With().Interface(key, value).Logger()}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	l.zl.Trace().Msg(fmt.Sprintf(format, args...))
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()

// SetDefaultLogger replaces the global logger
func SetDefaultLogger(l *Logger) {
	DefaultLogger = l
}

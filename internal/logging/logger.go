// Package logging provides the logging interface used by sequence file
// writers, readers, sorters and mergers, with a stdlib-backed default, a
// discard logger and a logrus adapter.
//
// Log format: YYYY/MM/DD HH:MM:SS LEVEL [component] message
//
// Example: 2025/12/30 18:45:13 INFO [sort] spilled segment 3 (4096 records)
//
// Component namespace prefixes:
//   - [writer] file creation and finalization
//   - [reader] header parsing and resynchronization
//   - [sort]   buffer spills and sort passes
//   - [merge]  merge passes and cleanup
//   - [codec]  codec resolution
package logging

import (
	"fmt"
	"io"
	"log"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
)

// Level represents the logging level.
type Level int

const (
	// LevelError logs only errors.
	LevelError Level = iota
	// LevelWarn logs warnings and errors.
	LevelWarn
	// LevelInfo logs info, warnings, and errors.
	LevelInfo
	// LevelDebug logs everything including debug messages.
	LevelDebug
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "ERROR":
		return LevelError, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "INFO":
		return LevelInfo, nil
	case "DEBUG":
		return LevelDebug, nil
	}
	return LevelWarn, errors.Newf("logging: unknown level %q", s)
}

// Logger defines the logging interface.
//
// Implementations MUST be safe for concurrent use: independent sorts may log
// from several goroutines.
type Logger interface {
	// Errorf logs a formatted error message.
	Errorf(format string, args ...any)

	// Warnf logs a formatted warning message.
	Warnf(format string, args ...any)

	// Infof logs a formatted informational message.
	Infof(format string, args ...any)

	// Debugf logs a formatted debug message.
	Debugf(format string, args ...any)

	// Fatalf logs an unrecoverable condition. It does not exit the process;
	// the caller still returns an error.
	Fatalf(format string, args ...any)
}

// DefaultLogger writes to an io.Writer through log.Logger.
// Level is read-only after construction.
type DefaultLogger struct {
	logger *log.Logger
	level  Level
}

// NewLogger creates a logger with the specified output and level.
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

// Level returns the logging level.
func (l *DefaultLogger) Level() Level {
	return l.level
}

func (l *DefaultLogger) output(level Level, prefix, format string, args []any) {
	if l.level >= level {
		_ = l.logger.Output(3, prefix+fmt.Sprintf(format, args...))
	}
}

// Errorf logs a formatted error message.
func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.output(LevelError, "ERROR ", format, args)
}

// Warnf logs a formatted warning message.
func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.output(LevelWarn, "WARN ", format, args)
}

// Infof logs a formatted informational message.
func (l *DefaultLogger) Infof(format string, args ...any) {
	l.output(LevelInfo, "INFO ", format, args)
}

// Debugf logs a formatted debug message.
func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.output(LevelDebug, "DEBUG ", format, args)
}

// Fatalf logs at FATAL level regardless of the configured level.
func (l *DefaultLogger) Fatalf(format string, args ...any) {
	_ = l.logger.Output(2, "FATAL "+fmt.Sprintf(format, args...))
}

// Namespace prefixes for log messages.
const (
	// NSWriter is the namespace for writer operations.
	NSWriter = "[writer] "
	// NSReader is the namespace for reader operations.
	NSReader = "[reader] "
	// NSSort is the namespace for sort operations.
	NSSort = "[sort] "
	// NSMerge is the namespace for merge operations.
	NSMerge = "[merge] "
	// NSCodec is the namespace for codec resolution.
	NSCodec = "[codec] "
)

// IsNil returns true if the logger is nil or a typed-nil.
//
//	var l *MyLogger = nil
//	opts.Logger = l  // Interface is not nil, but underlying pointer is
func IsNil(l Logger) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrDiscard returns l if it is usable, otherwise Discard.
func OrDiscard(l Logger) Logger {
	if IsNil(l) {
		return Discard
	}
	return l
}

// Package logger defines the structured logging interface used across go-dvl
// and a log/slog based default implementation.
//
// Log Levels:
//
//   - TraceLevel: raw protocol exchanges (sanitized bytes sent to and received from a device).
//   - DebugLevel: state transitions and retry decisions.
//   - InfoLevel:  lifecycle events such as a completed setup sequence.
//   - WarnLevel:  recoverable failures, e.g. a setup attempt that will be restarted.
//   - ErrorLevel: failures that need attention.
//   - FatalLevel: unrecoverable errors; the process exits.
package logger

// Level indicates the logging severity level.
type Level int8

const (
	// TraceLevel logs every byte sequence exchanged with a device. Very noisy.
	TraceLevel Level = iota - 2
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly,
	// it shouldn't generate any error-level logs.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// String returns the lower-case name of the level.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name ("trace", "debug", "info", "warn", "error")
// to a Level. The second return value is false for unknown names.
func ParseLevel(name string) (Level, bool) {
	switch name {
	case "trace":
		return TraceLevel, true
	case "debug":
		return DebugLevel, true
	case "info", "":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}

// Logger defines a common interface for logging.
// Every go-dvl package logs through this interface, so applications can plug
// in their own logging framework.
type Logger interface {
	// Trace logs a message at TraceLevel.
	Trace(msg string, keysAndValues ...any)
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger and adds structured context to it.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}

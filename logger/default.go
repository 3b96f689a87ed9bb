package logger

import "sync/atomic"

var defLogger atomic.Value

func init() {
	defLogger.Store(holder{NewSlog(InfoLevel, false)})
}

// holder keeps the stored dynamic type constant for atomic.Value.
type holder struct{ Logger }

// GetLogger returns the package-level default logger. Components that are
// not given a logger through their options log here.
func GetLogger() Logger {
	return defLogger.Load().(holder).Logger
}

// SetLogger replaces the package-level default logger. A nil logger is
// ignored. Components pick up the default when they are constructed, so
// call it before creating engines or supervisors.
func SetLogger(l Logger) {
	if l != nil {
		defLogger.Store(holder{l})
	}
}

// SetLevel changes the level of the default logger.
func SetLevel(level Level) { GetLogger().SetLevel(level) }

// With returns a child of the default logger.
func With(keyValues ...any) Logger { return GetLogger().With(keyValues...) }

func Trace(msg string, keysAndValues ...any) { GetLogger().Trace(msg, keysAndValues...) }
func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)  { GetLogger().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)  { GetLogger().Warn(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }
func Fatal(msg string, keysAndValues ...any) { GetLogger().Fatal(msg, keysAndValues...) }

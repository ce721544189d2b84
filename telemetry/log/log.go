// Package log holds the logger used by the errors package when a Trace logs itself. By default this is
// a JSON slog.Logger writing to stderr. Programs replace it with Set(), usually with a logger created by
// the adapters package.
package log

import (
	"log/slog"
	"os"
	"sync/atomic"
)

// LogLevel is the log level for the program. This is used to set the log level for the default logger.
// If the new logger is created from the adapters package, it uses this LogLevel.
// If not, you must pass this to your logger manually.
var LogLevel = new(slog.LevelVar) // Info by default

var defaultLog atomic.Pointer[slog.Logger]

func init() {
	defaultLog.Store(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: false, Level: LogLevel})))
}

// Default returns the default logger.
func Default() *slog.Logger {
	l := defaultLog.Load()
	if l == nil {
		return slog.Default()
	}
	return l
}

// Set sets the logger returned by Default(). Setting nil makes Default() return slog.Default().
func Set(l *slog.Logger) {
	defaultLog.Store(l)
	if l != nil {
		slog.SetDefault(l)
	}
}

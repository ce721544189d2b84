// Package adapters provides adapters for converting logging instances to the *slog.Logger type.
// This allows existing logging packages that are in use to be used with our logging package.
package adapters

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gostdlib/traceerr/telemetry/log"

	"github.com/rs/zerolog"
	slogzap "github.com/samber/slog-zap/v2"
	slogzerolog "github.com/samber/slog-zerolog/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap creates a new slog.Logger that writes to a Zap logger.
func Zap(l *zap.Logger) *slog.Logger {
	return slog.New(
		slogzap.Option{
			AddSource: true,
			Level:     log.LogLevel,
			Logger:    l,
		}.NewZapHandler())
}

// ZeroLog creates a new slog.Logger that writes to a Zerolog logger.
func ZeroLog(l zerolog.Logger) *slog.Logger {
	return slog.New(
		slogzerolog.Option{
			AddSource: true,
			Level:     log.LogLevel,
			Logger:    &l,
		}.NewZerologHandler())
}

// Backends are the names New() accepts.
var Backends = []string{"json", "text", "zap", "zerolog"}

// New creates a logger writing to w with the named backend. "json" and "text" are the slog
// handlers, "zap" and "zerolog" are JSON loggers of those packages wrapped with Zap() and ZeroLog().
func New(backend string, w io.Writer) (*slog.Logger, error) {
	switch strings.ToLower(backend) {
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: log.LogLevel})), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: log.LogLevel})), nil
	case "zap":
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			zapcore.DebugLevel,
		)
		return Zap(zap.New(core)), nil
	case "zerolog":
		return ZeroLog(zerolog.New(w)), nil
	}
	return nil, fmt.Errorf("unknown log backend %q, must be one of %s", backend, strings.Join(Backends, ", "))
}

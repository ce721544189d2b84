package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/gostdlib/traceerr/telemetry/log"
	"github.com/gostdlib/traceerr/telemetry/otel/metrics"
	"github.com/gostdlib/traceerr/telemetry/otel/trace/span"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	otelTrace "go.opentelemetry.io/otel/trace"
)

// LogAttrer is an interface that can be implemented by an error to return a list of attributes
// used in logging.
type LogAttrer interface {
	// LogAttrs returns a []slog.Attr that will be used in logging.
	LogAttrs(ctx context.Context) []slog.Attr
}

// TraceAttrer is an interface that can be implemented by an error to return a list of attributes
// used in tracing. Keys should be prepended by the given string. Record() passes the package path
// of the error type to prevent collisions.
type TraceAttrer interface {
	TraceAttrs(ctx context.Context, prepend string, attrs span.Attributes) span.Attributes
}

// LogAttrs implements LogAttrer.LogAttrs(). This does not include attributes of the bound error.
func (t *Trace[E]) LogAttrs(ctx context.Context) []slog.Attr {
	traceID := ""
	s := span.Get(ctx)
	if s.IsRecording() {
		if s.Span.SpanContext().HasTraceID() {
			traceID = s.Span.SpanContext().TraceID().String()
		}
	}

	var (
		file  string
		line  int
		stack string
	)
	if bt := t.Backtrace(); bt != nil {
		file, line, stack = bt.File(), bt.Line(), bt.String()
	}

	attrs := []slog.Attr{
		slog.String("ErrType", fmt.Sprintf("%T", t.Err())),
		slog.String("ErrSrc", file),
		slog.Int("ErrLine", line),
		slog.String("TraceID", traceID),
	}
	if stack != "" {
		attrs = append(attrs, slog.String("StackTrace", stack))
	}
	return attrs
}

// Log logs the error at error level to log.Default() with attrs, the attributes of LogAttrs() and
// those of any error in the chain of the bound error that implements LogAttrer.
func (t *Trace[E]) Log(ctx context.Context, attrs ...slog.Attr) {
	logAttrs := t.LogAttrs(ctx)
	all := make([]slog.Attr, 0, len(attrs)+len(logAttrs))
	all = append(all, attrs...)
	all = append(all, logAttrs...)

	for err := t.Unwrap(); err != nil; err = errors.Unwrap(err) {
		if f, ok := err.(LogAttrer); ok {
			all = append(all, f.LogAttrs(ctx)...)
		}
	}

	log.Default().LogAttrs(ctx, slog.LevelError, t.Error(), all...)
}

// TraceAttrs converts the Trace to a list of attributes consumable by the OpenTelemetry trace
// package. These are added to attrs and returned. This does not include attributes of the bound
// error.
func (t *Trace[E]) TraceAttrs(ctx context.Context, prepend string, attrs span.Attributes) span.Attributes {
	if attrs.Err() != nil {
		return attrs
	}

	var (
		file string
		line int
	)
	if bt := t.Backtrace(); bt != nil {
		file, line = bt.File(), bt.Line()
	}

	if attrs.Attrs == nil {
		attrs.Attrs = make([]attribute.KeyValue, 0, 3)
	}
	attrs.Add(attribute.String(prepend+"ErrType", fmt.Sprintf("%T", t.Err())))
	attrs.Add(attribute.String(prepend+"ErrSrc", file))
	attrs.Add(attribute.Int(prepend+"ErrLine", line))

	return attrs
}

type recordOpts struct {
	suppressStatus bool
}

// RecordOption is an optional argument for Record().
type RecordOption func(recordOpts) recordOpts

// WithSuppressStatus prevents Record() from setting the span status to Error. The span still
// receives the error. This is useful for errors that are retried and you only want a status of
// error if the error is not resolved.
func WithSuppressStatus() RecordOption {
	return func(o recordOpts) recordOpts {
		o.suppressStatus = true
		return o
	}
}

// Record records the error on the span in ctx with the attributes of TraceAttrs(), those of any
// error in the chain that implements TraceAttrer and the formatted backtrace as
// "exception.stacktrace". It then sets the span status to Error. If the span is not recording,
// this does nothing.
func (t *Trace[E]) Record(ctx context.Context, options ...RecordOption) {
	if ctx == nil || t == nil {
		return
	}
	s := span.Get(ctx)
	if !s.IsRecording() {
		return
	}

	opts := recordOpts{}
	for _, o := range options {
		opts = o(opts)
	}

	attrs := t.TraceAttrs(ctx, "", span.Attributes{})
	for err := t.Unwrap(); err != nil; err = errors.Unwrap(err) {
		if ta, ok := err.(TraceAttrer); ok {
			ty := reflect.TypeOf(ta)
			attrs = ta.TraceAttrs(ctx, ty.PkgPath()+".", attrs)
		}
	}
	if t.bt != nil {
		attrs.Add(attribute.String("exception.stacktrace", t.bt.String()))
	}

	var recorded error = t
	if cause := t.Unwrap(); cause != nil {
		recorded = cause
	}
	s.Span.RecordError(recorded, otelTrace.WithAttributes(attrs.Attrs...))
	if !opts.suppressStatus {
		s.Status(codes.Error, t.Error())
	}
}

// MeterName is the name of the meter the capture counter is created on, the import path of this
// package.
var MeterName = metrics.MeterName(0)

// CaptureMetric is the name of the counter incremented for every captured backtrace. It has
// the attribute "error.type", the Go type of the captured error.
const CaptureMetric = "traceerr.captures"

type captureCounter struct {
	mp      metric.MeterProvider
	counter metric.Int64Counter
}

// counter is recreated when metrics.Set() changes the default provider.
var counter atomic.Pointer[captureCounter]

// countCapture records a captured backtrace for an error of the type of err.
func countCapture(err error) {
	mp := metrics.Default()
	if mp == nil {
		return
	}

	cc := counter.Load()
	if cc == nil || cc.mp != mp {
		c, e := mp.Meter(MeterName).Int64Counter(
			CaptureMetric,
			metric.WithDescription("Number of backtraces captured for errors"),
			metric.WithUnit("{capture}"),
		)
		if e != nil {
			log.Default().Error(fmt.Sprintf("errors: could not create the %s counter: %s", CaptureMetric, e))
			return
		}
		cc = &captureCounter{mp: mp, counter: c}
		counter.Store(cc)
	}

	cc.counter.Add(
		context.Background(),
		1,
		metric.WithAttributes(attribute.String("error.type", fmt.Sprintf("%T", err))),
	)
}

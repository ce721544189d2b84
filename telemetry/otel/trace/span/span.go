/*
Package span wraps the OpenTelemetry span stored in a Context. The errors package uses it to record a
Trace on the span of the request that failed:

	func handle(ctx context.Context) error {
		ctx, s := span.New(ctx)
		defer s.End()

		if _, tr := errors.Try(os.Open(path)); tr != nil {
			// Adds the error with its backtrace to the span and sets the status to Error.
			tr.Record(ctx)
			return tr
		}
		...
	}

All methods are safe to use when the Context has no span or the span is not recording, in which case
they do nothing.
*/
package span

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gostdlib/traceerr/telemetry/log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkTrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracerName is the name of the tracer New() uses to start child spans.
const tracerName = "github.com/gostdlib/traceerr"

// maxNameLen is the limit tracing backends have on span names and attribute values.
const maxNameLen = 255

// Span represents an OTEL span for recording events. It handles the noop cases for the trace.Span.
// The OTEL span is available as a field for other needs.
type Span struct {
	// Span is the OTEL trace.Span.
	Span trace.Span

	opts spanOpts
}

type spanOpts struct {
	name         string
	startOptions []trace.SpanStartOption
	endOptions   []trace.SpanEndOption
}

// Get returns the Span stored in the Context. If there is none, the Span is a noop.
func Get(ctx context.Context) Span {
	return Span{Span: trace.SpanFromContext(ctx)}
}

// Option is an option to New().
type Option func(spanOpts) (spanOpts, error)

// WithSpanStartOption adds trace.SpanStartOption(s) to the span creation.
func WithSpanStartOption(options ...trace.SpanStartOption) Option {
	return func(s spanOpts) (spanOpts, error) {
		s.startOptions = options
		return s, nil
	}
}

// WithSpanEndOption adds trace.SpanEndOption(s) to the span end.
func WithSpanEndOption(options ...trace.SpanEndOption) Option {
	return func(s spanOpts) (spanOpts, error) {
		s.endOptions = options
		return s, nil
	}
}

// WithName overrides the default span name, which is the name of the calling function. Names longer
// than 255 characters are truncated at the front.
func WithName(name string) Option {
	return func(s spanOpts) (spanOpts, error) {
		if strings.TrimSpace(name) == "" {
			return s, errors.New("WithName() requires a non-empty name")
		}
		s.name = name
		return s, nil
	}
}

// New starts a child span of the span stored in ctx, using the TracerProvider that created the parent.
// If the parent is not recording, the child is a noop. A nil ctx returns context.Background() with a
// noop span. Invalid options are logged and ignored. The span kind is internal unless
// WithSpanStartOption(trace.WithSpanKind([kind])) is passed.
func New(ctx context.Context, options ...Option) (context.Context, Span) {
	if ctx == nil {
		return context.Background(), Span{Span: noop.Span{}}
	}

	parent := trace.SpanFromContext(ctx)
	if !parent.IsRecording() {
		return ctx, Span{Span: noop.Span{}}
	}

	opts := newOptions(options...)

	var sp trace.Span
	ctx, sp = parent.TracerProvider().Tracer(tracerName).Start(ctx, opts.name, opts.startOptions...)

	return ctx, Span{Span: sp, opts: opts}
}

// newOptions must be called directly by New(), it names the span after the caller of New().
func newOptions(options ...Option) spanOpts {
	opts := spanOpts{
		startOptions: []trace.SpanStartOption{
			// Overridden by a WithSpanKind() passed with WithSpanStartOption().
			trace.WithSpanKind(trace.SpanKindInternal),
		},
	}
	var err error
	for _, o := range options {
		var n spanOpts
		n, err = o(opts)
		if err != nil {
			log.Default().Error(fmt.Sprintf("span.New: error applying option: %v", err))
			continue
		}
		opts = n
	}

	pc, filename, line, _ := runtime.Caller(2)

	if opts.name == "" {
		if fn := runtime.FuncForPC(pc); fn != nil {
			opts.name = fn.Name()
		} else {
			opts.name = "unknown"
		}
	}

	opts.name = truncate(opts.name)
	filename = truncate(filename)

	opts.startOptions = append(
		opts.startOptions,
		trace.WithAttributes(
			attribute.String("filename", filename),
			attribute.Int("line", line),
		),
	)

	return opts
}

// truncate keeps the last maxNameLen characters of s, the first three being "...".
func truncate(s string) string {
	if len(s) <= maxNameLen {
		return s
	}
	return "..." + s[len(s)-(maxNameLen-3):]
}

var now = time.Now

// Event records an event with name and attrs. You can create attrs using the attribute package, like
// attribute.String("key", "value"). If the span is not recording, this is a noop.
func (s Span) Event(name string, attrs ...attribute.KeyValue) {
	if !s.IsRecording() {
		return
	}

	name = strings.TrimSpace(name)
	if name == "" {
		log.Default().Error("span.Span.Event: must provide an event name")
		return
	}

	opts := []trace.EventOption{
		trace.WithTimestamp(now()),
	}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	s.Span.AddEvent(name, opts...)
}

// IsRecording returns true if the span is recording events. This is safe to call even if the span
// is nil.
func (s Span) IsRecording() bool {
	if s.Span == nil || !s.Span.IsRecording() {
		return false
	}
	return true
}

// Status records a status for the span. description is only used if the code is an Error.
// errors.Trace.Record() sets the status to Error.
func (s Span) Status(code codes.Code, description string) {
	if !s.IsRecording() {
		return
	}
	s.Span.SetStatus(code, description)
}

// End ends the span. If the status hasn't been set by Status() or errors.Trace.Record(), the status
// is set to OK. If the span is not recording, this is a noop.
func (s Span) End() {
	if !s.IsRecording() {
		return
	}

	if sdkSpan, ok := s.Span.(sdkTrace.ReadOnlySpan); ok {
		if sdkSpan.Status().Code == codes.Unset {
			s.Status(codes.Ok, "")
		}
	}

	s.Span.End(s.opts.endOptions...)
}

// Attributes collects attributes for a span. If an error is encountered while adding attributes,
// the error is stored and can be retrieved by calling Err().
type Attributes struct {
	// Attrs is the list of attributes to be added to the span.
	Attrs []attribute.KeyValue
	err   error
}

// Add adds a key value pair to the Attributes. Keys may repeat, the OTEL package determines how
// to handle that.
func (a *Attributes) Add(kv attribute.KeyValue) {
	if kv.Key == "" {
		a.err = errors.Join(a.err, errors.New("key cannot be empty"))
		return
	}

	a.Attrs = append(a.Attrs, kv)
}

// Err returns the error that was set on the Attributes during Add().
func (a *Attributes) Err() error {
	return a.err
}

// Reset clears the Attributes and error.
func (a *Attributes) Reset() {
	a.Attrs = nil
	a.err = nil
}

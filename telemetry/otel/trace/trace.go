/*
Package trace holds the OpenTelemetry TracerProvider that starts the spans errors.Trace.Record() writes
to. The tracing itself is done through the span package on spans taken from a Context; this package
only creates and holds the provider.

A program without a collector can use Local() to print every span to stderr:

	tp, err := trace.Local(ctx, os.Stderr)
	if err != nil {
		// Handle the error.
	}
	trace.Set(tp)
	defer trace.Close()

	ctx, sp := tp.Tracer("main").Start(ctx, "main")
	defer sp.End()
*/
package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gostdlib/traceerr/telemetry/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkTrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	mu        sync.Mutex
	defaultTP *sdkTrace.TracerProvider
)

// Default returns the provider passed to Set(). This is nil if Set() was not called.
func Default() *sdkTrace.TracerProvider {
	mu.Lock()
	defer mu.Unlock()

	return defaultTP
}

// Set sets the default trace provider and the otel global provider. It also sets the global
// propagator to tracecontext, the default is a noop.
func Set(tp *sdkTrace.TracerProvider) {
	mu.Lock()
	defer mu.Unlock()

	defaultTP = tp
	if tp != nil {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
	}
}

// Local creates a new trace provider that writes every span to w as indented JSON. This always
// samples. Spans are exported in batches, call Shutdown() on the provider (or Close() if it was
// passed to Set()) to flush them.
func Local(ctx context.Context, w io.Writer) (*sdkTrace.TracerProvider, error) {
	res, err := resources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create opentelemetry resource: %w", err)
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	bsp := sdkTrace.NewBatchSpanProcessor(exp, sdkTrace.WithBatchTimeout(1*time.Second))
	tp := sdkTrace.NewTracerProvider(
		sdkTrace.WithSampler(sdkTrace.AlwaysSample()),
		sdkTrace.WithResource(res),
		sdkTrace.WithSpanProcessor(bsp),
	)

	return tp, nil
}

// resources creates a new resource with global information. Detectors that fail, like the container
// detector outside a container, are left out.
func resources(ctx context.Context) (*resource.Resource, error) {
	// https://opentelemetry.io/docs/languages/go/resources/
	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithOS(),
		resource.WithContainer(),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, err
	}
	return res, nil
}

// Close shuts down the default trace provider, flushing any spans that were not exported yet.
func Close() {
	tp := Default()
	if tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Default().Error(fmt.Sprintf("trace.Close: could not shut down the trace provider: %v", err))
	}
}

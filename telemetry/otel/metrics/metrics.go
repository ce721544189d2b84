// Package metrics holds the OpenTelemetry meter provider used by the errors package to count captured
// backtraces. The default provider is a noop; a program that exports metrics calls Set() in main()
// with its own provider, for example one from Prometheus():
//
//	mp, reg, err := metrics.Prometheus()
//	if err != nil {
//		// Handle the error.
//	}
//	metrics.Set(mp)
//	defer mp.Shutdown(context.Background())
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	mu              sync.RWMutex
	defaultProvider metric.MeterProvider
)

var noopProvider metric.MeterProvider = noop.NewMeterProvider()

// Default returns the default meter provider. If the default provider is currently nil,
// this will return a noop provider.
func Default() metric.MeterProvider {
	mu.RLock()
	defer mu.RUnlock()

	if defaultProvider == nil {
		return noopProvider
	}
	return defaultProvider
}

// Set sets the default meter provider. Set(nil) restores the noop provider. This also sets
// the otel global provider.
func Set(p metric.MeterProvider) {
	mu.Lock()
	defer mu.Unlock()

	defaultProvider = p
	if p == nil {
		p = noopProvider
	}
	otel.SetMeterProvider(p)
}

// Prometheus returns a meter provider that exports through the OpenTelemetry prometheus exporter to
// a new registry. The registry can be served with promhttp or written with WriteText(). Each call has
// its own registry, so the provider can be replaced without duplicate registrations.
func Prometheus() (*sdkmetric.MeterProvider, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	exp, err := otelprometheus.New(otelprometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)), reg, nil
}

// WriteText gathers the metrics in g and writes them to w in the prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("could not gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// MeterName returns the import path of the package containing the function stackFrame levels
// above the caller of MeterName(). If this can't be determined "unknown" will be returned.
// Generally stackFrame is 0, which is the package calling MeterName().
//
// For example:
// "github.com/user/project/pkgName"
func MeterName(stackFrame int) string {
	pc, _, _, ok := runtime.Caller(stackFrame + 1)
	if !ok {
		return "unknown"
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}

	// e.g., "github.com/user/project/pkg.subpkg.(*MyStruct).MyMethod"
	fullName := fn.Name()
	lastSlash := strings.LastIndex(fullName, "/")

	// Happens when there is no real path, like in the playground.
	if lastSlash == -1 {
		sp := strings.Split(fullName, ".")
		if len(sp) > 1 {
			return sp[0]
		}
		return fullName
	}

	return fullName[:strings.Index(fullName[lastSlash:], ".")+lastSlash]
}

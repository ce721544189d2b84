// Tracedemo raises and forwards errors with github.com/gostdlib/traceerr/errors and prints the
// resulting Trace. It forwards a successful result (prints 42), then opens a file that usually
// does not exist and prints the error with the backtrace of where it was raised.
//
// Usage:
//
//	tracedemo [--file path] [--reverse] [--no-header] [--json] [--log json|text|zap|zerolog]
//	          [--color auto|on|off] [--spans] [--metrics]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gostdlib/traceerr/backtrace"
	traceerr "github.com/gostdlib/traceerr/errors"
	example "github.com/gostdlib/traceerr/errors/example"
	"github.com/gostdlib/traceerr/stack"
	"github.com/gostdlib/traceerr/telemetry/log"
	"github.com/gostdlib/traceerr/telemetry/log/adapters"
	"github.com/gostdlib/traceerr/telemetry/otel/metrics"
	"github.com/gostdlib/traceerr/telemetry/otel/trace"
	"github.com/gostdlib/traceerr/telemetry/otel/trace/span"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	otelTrace "go.opentelemetry.io/otel/trace"
)

type config struct {
	file     string
	reverse  bool
	noHeader bool
	json     bool
	log      string
	color    string
	spans    bool
	metrics  bool
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cfg := config{}

	cmd := &cobra.Command{
		Use:   "tracedemo",
		Short: "Raise, forward and print a traced error",
		Long: `Tracedemo forwards the result of a function that succeeds, then opens --file. If the file
does not exist the error is printed with the backtrace of where it was raised.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.Flags().StringVar(&cfg.file, "file", "Cargos.toml", "file to open")
	cmd.Flags().BoolVar(&cfg.reverse, "reverse", false, "print the backtrace outermost frame first")
	cmd.Flags().BoolVar(&cfg.noHeader, "no-header", false, "omit the backtrace header")
	cmd.Flags().BoolVar(&cfg.json, "json", false, "print the error as JSON")
	cmd.Flags().StringVar(&cfg.log, "log", "json", "log backend ("+strings.Join(adapters.Backends, "|")+")")
	cmd.Flags().StringVar(&cfg.color, "color", "auto", "colorize output (auto|on|off)")
	cmd.Flags().BoolVar(&cfg.spans, "spans", false, "export the span the error is recorded on to stderr")
	cmd.Flags().BoolVar(&cfg.metrics, "metrics", false, "print the number of captured backtraces")

	return cmd
}

// errFailed is returned by run() after the Trace was printed, so the process exits with 1.
var errFailed = errors.New("failed")

func run(ctx context.Context, cfg config, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	useColor, err := colorMode(cfg.color, stdout)
	if err != nil {
		return err
	}

	logger, err := adapters.New(cfg.log, stderr)
	if err != nil {
		return err
	}
	log.Set(logger)

	var reg *prometheus.Registry
	if cfg.metrics {
		mp, r, err := metrics.Prometheus()
		if err != nil {
			return fmt.Errorf("could not create the meter provider: %w", err)
		}
		reg = r
		defer mp.Shutdown(context.Background())
		metrics.Set(mp)
		defer metrics.Set(nil)
	}

	if cfg.spans {
		tp, err := trace.Local(ctx, stderr)
		if err != nil {
			return fmt.Errorf("could not create the trace provider: %w", err)
		}
		trace.Set(tp)
		defer trace.Set(nil)
		defer trace.Close()

		var root otelTrace.Span
		ctx, root = tp.Tracer("tracedemo").Start(ctx, "tracedemo")
		defer root.End()
	}

	ctx, s := span.New(ctx, span.WithName("example.Run"))
	tr := example.Run(stdout, cfg.file)
	if tr != nil {
		tr.Record(ctx)
	}
	s.End()

	if reg != nil {
		if err := metrics.WriteText(stderr, reg); err != nil {
			return err
		}
		n, err := captures(reg)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "backtraces captured: %d\n", n)
	}

	if tr == nil {
		fmt.Fprintln(stdout, "Success!")
		return nil
	}

	tr.Log(ctx, slog.String("file", cfg.file))

	if cfg.json {
		b, err := tr.MarshalJSON()
		if err != nil {
			return fmt.Errorf("could not marshal the error: %w", err)
		}
		fmt.Fprintln(stdout, string(b))
		return errFailed
	}

	var f backtrace.SymbolFormatter = backtrace.Default
	if useColor {
		f = colorFormatter()
	}
	fmt.Fprintf(stdout, "Error: %s", tr.Render(f, !cfg.noHeader, cfg.reverse))
	return errFailed
}

// colorMode reports if output to w is colorized for the --color value mode.
func colorMode(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return isTerminal(w), nil
	}
	return false, fmt.Errorf("unknown --color value %q, must be auto, on or off", mode)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// colorFormatter formats symbols like backtrace.Default with the name line in bold yellow and the
// location line in cyan.
func colorFormatter() backtrace.SymbolFormatter {
	name := color.New(color.FgYellow, color.Bold)
	name.EnableColor()
	loc := color.New(color.FgCyan)
	loc.EnableColor()

	return backtrace.SymbolFormatterFunc(func(count int, sym stack.Symbol) string {
		first, rest, _ := strings.Cut(backtrace.Default.FormatSymbol(count, sym), "\n")
		return name.Sprint(first) + "\n" + loc.Sprint(strings.TrimSuffix(rest, "\n")) + "\n"
	})
}

// captures returns the number of backtraces counted by the errors package.
func captures(g prometheus.Gatherer) (int64, error) {
	mfs, err := g.Gather()
	if err != nil {
		return 0, fmt.Errorf("could not gather metrics: %w", err)
	}

	// Depending on the name translation the dots are kept or escaped, counters get a _total suffix.
	name := strings.ReplaceAll(traceerr.CaptureMetric, ".", "_")
	var n int64
	for _, mf := range mfs {
		if !strings.HasPrefix(strings.ReplaceAll(mf.GetName(), ".", "_"), name) {
			continue
		}
		for _, m := range mf.GetMetric() {
			n += int64(m.GetCounter().GetValue())
		}
	}
	return n, nil
}

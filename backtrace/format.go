package backtrace

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/gostdlib/traceerr/stack"
)

// SelfFilter is matched against the name of every resolved symbol. Symbols whose name contains it
// are the constructors of this package and are never printed, nor do they use a frame number.
// This is a substring match on package qualified names, so it also drops any other function whose
// name happens to contain it. It breaks if the constructors are renamed.
const SelfFilter = "backtrace.New"

const (
	// sourceSkip hides stack.Capture() in a stored Source.
	sourceSkip = 1
	// liveSkip hides stack.Capture() and formatTrace() when formatting the live stack.
	liveSkip = 2
)

// ptrWidth is the width of a formatted address: two hex digits a byte plus "0x".
const ptrWidth = strconv.IntSize/4 + 2

// SymbolFormatter formats a single symbol of a backtrace. count is the frame number of the symbol,
// starting at 0. The returned string should end in a newline.
type SymbolFormatter interface {
	FormatSymbol(count int, sym stack.Symbol) string
}

// SymbolFormatterFunc is an adapter to allow the use of ordinary functions as a SymbolFormatter.
type SymbolFormatterFunc func(count int, sym stack.Symbol) string

// FormatSymbol implements SymbolFormatter.FormatSymbol().
func (f SymbolFormatterFunc) FormatSymbol(count int, sym stack.Symbol) string {
	return f(count, sym)
}

// Default is the SymbolFormatter used when none is given. It resembles panic backtraces:
//
//	Stack backtrace for task "<goroutine 1>" at line 47 of "/src/app/main.go":
//	   0:           0x4a2f1c - main.load
//	                        at /src/app/main.go:47
//	   1:           0x4a3120 - main.main
//	                        at /src/app/main.go:53
//	   2:           0x43b240 - runtime.main
//	                        at /usr/local/go/src/runtime/proc.go:283
//	   3:                0x0 - <unknown>
//	                        at <anonymous>
var Default SymbolFormatter = defaultFormatter{}

type defaultFormatter struct{}

// FormatSymbol implements SymbolFormatter.FormatSymbol().
func (defaultFormatter) FormatSymbol(count int, sym stack.Symbol) string {
	name := "<unknown>"
	if sym.HasName() {
		name = sym.Name
	}
	addr := "0x0"
	if sym.HasAddr() {
		addr = "0x" + strconv.FormatUint(uint64(sym.Addr), 16)
	}
	return fmt.Sprintf("%4d: %*s - %s\n%*s%s\n", count, ptrWidth, addr, name, ptrWidth+6, "", Location(sym))
}

// Location returns the location suffix of sym: "at file:line", "at file", "at <anonymous>:line"
// or "at <anonymous>", depending on what was resolved.
func Location(sym stack.Symbol) string {
	switch {
	case sym.HasFile() && sym.HasLine():
		return "at " + sym.File + ":" + strconv.Itoa(sym.Line)
	case sym.HasFile():
		return "at " + sym.File
	case sym.HasLine():
		return "at <anonymous>:" + strconv.Itoa(sym.Line)
	}
	return "at <anonymous>"
}

// Header returns the header line of a backtrace that originated at line of file.
func Header(line int, file string) string {
	return fmt.Sprintf("Stack backtrace for task \"<%s>\" at line %d of \"%s\":\n", taskName(), line, file)
}

// taskName returns the name of the calling goroutine. Replaced in tests.
var taskName = goroutineName

var goroutinePrefix = []byte("goroutine ")

// goroutineName returns "goroutine N" for the calling goroutine, or "unnamed" if the runtime
// does not tell us.
func goroutineName() string {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	if !bytes.HasPrefix(b, goroutinePrefix) {
		return "unnamed"
	}
	b = b[len(goroutinePrefix):]
	i := bytes.IndexByte(b, ' ')
	if i <= 0 {
		return "unnamed"
	}
	return "goroutine " + string(b[:i])
}

// Visible returns the symbols of syms (innermost first) that are printed in a backtrace. Symbols
// matching SelfFilter are removed first, then the first skip of the remaining symbols are dropped.
// Neither uses a frame number.
func Visible(syms []stack.Symbol, skip int) []stack.Symbol {
	out := make([]stack.Symbol, 0, len(syms))
	for _, sym := range syms {
		if strings.Contains(sym.Name, SelfFilter) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, sym)
	}
	return out
}

// FormatSymbols formats syms (innermost first) with f after removing the symbols Visible() removes.
// If reverse is set, the outermost symbol is printed first. Frame numbers start at 0 in the order
// the symbols are printed. If f is nil, Default is used.
func FormatSymbols(f SymbolFormatter, syms []stack.Symbol, skip int, reverse bool) string {
	if f == nil {
		f = Default
	}

	visible := Visible(syms, skip)

	var b strings.Builder
	if reverse {
		for i := len(visible) - 1; i >= 0; i-- {
			b.WriteString(f.FormatSymbol(len(visible)-1-i, visible[i]))
		}
		return b.String()
	}
	for i, sym := range visible {
		b.WriteString(f.FormatSymbol(i, sym))
	}
	return b.String()
}

// FormatTrace formats the stack of the calling goroutine, starting at the caller of FormatTrace.
// line and file are only used in the header and should be where FormatTrace was called from.
// Nothing is stored, for errors use New() instead.
func FormatTrace(f SymbolFormatter, header bool, line int, file string) string {
	return formatTrace(f, header, line, file, liveSkip+1)
}

// Here returns the formatted stack of the calling goroutine with a header, starting at the caller
// of Here. If f is nil, Default is used.
func Here(f SymbolFormatter) string {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "unknown"
	}
	return formatTrace(f, true, line, file, liveSkip+1)
}

// HereNoHeader is like Here(), but without the header line.
func HereNoHeader(f SymbolFormatter) string {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "unknown"
	}
	return formatTrace(f, false, line, file, liveSkip+1)
}

// formatTrace must be called directly by an exported function, as the depth between the user and
// stack.Capture() is part of skip.
func formatTrace(f SymbolFormatter, header bool, line int, file string, skip int) string {
	syms := stack.Capture().Symbols()

	body := FormatSymbols(f, syms, skip, false)
	if !header {
		return body
	}
	return Header(line, file) + body
}

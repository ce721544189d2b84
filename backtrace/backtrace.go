/*
Package backtrace captures call stacks tagged with the source location they originate from and
formats them in a human readable way.

A Source is normally created by the errors package when an error is raised, but can be created
directly:

	bt := backtrace.New(42, "main.go")
	fmt.Println(bt.Render(backtrace.Default, true, false))

Formatting the stack without storing anything is done with Here():

	fmt.Print(backtrace.Here(nil))

The per symbol output is pluggable by providing a SymbolFormatter. Frames that belong to the
capture machinery are never printed and never use a frame number.
*/
package backtrace

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/gostdlib/traceerr/stack"

	"github.com/go-json-experiment/json"
)

// Source is a backtrace that also holds the line and file it originated from. A Source is never
// changed after it is created.
type Source struct {
	snapshot *stack.Snapshot
	line     int
	file     string
	// skip is the number of leading symbols, after SelfFilter is applied, that are part of the
	// capture machinery.
	skip int
}

// New captures the stack of the calling goroutine. line and file should be where New was
// called from.
func New(line int, file string) *Source {
	return &Source{
		snapshot: stack.Capture(),
		line:     line,
		file:     file,
		skip:     sourceSkip,
	}
}

// NewSkip is like New(), but skip additional frames directly above NewSkip are hidden. This is for
// helper functions that capture on behalf of their caller, each helper level adds 1 to skip.
func NewSkip(skip, line int, file string) *Source {
	if skip < 0 {
		skip = 0
	}
	return &Source{
		snapshot: stack.Capture(),
		line:     line,
		file:     file,
		skip:     sourceSkip + skip,
	}
}

// NewCaller is like NewSkip(), but the line and file are taken from the caller skip frames above
// the caller of NewCaller. NewCaller(0) tags the backtrace with the caller of NewCaller.
func NewCaller(skip int) *Source {
	if skip < 0 {
		skip = 0
	}
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		file = "unknown"
	}
	return &Source{
		snapshot: stack.Capture(),
		line:     line,
		file:     file,
		skip:     sourceSkip + skip,
	}
}

// FromSnapshot creates a Source from a Snapshot that was already captured, normally with
// stack.Capture(). As with New(), the first frame is assumed to be the capture call.
func FromSnapshot(snap *stack.Snapshot, line int, file string) *Source {
	if snap == nil {
		snap = stack.NewSnapshot(nil, nil)
	}
	return &Source{snapshot: snap, line: line, file: file, skip: sourceSkip}
}

// Line returns the line the backtrace originated from.
func (s *Source) Line() int {
	return s.line
}

// File returns the file the backtrace originated from.
func (s *Source) File() string {
	return s.file
}

// Raw returns the captured stack. It is not a copy.
func (s *Source) Raw() *stack.Snapshot {
	return s.snapshot
}

// Symbols returns the symbols that are printed by Render(), innermost first.
func (s *Source) Symbols() []stack.Symbol {
	return Visible(s.snapshot.Symbols(), s.skip)
}

// Render formats the backtrace with f. If header is set, the output starts with a line naming the
// goroutine, line and file. If reverse is set, the outermost frame is printed first. If f is nil,
// Default is used.
func (s *Source) Render(f SymbolFormatter, header, reverse bool) string {
	body := FormatSymbols(f, s.snapshot.Symbols(), s.skip, reverse)
	if !header {
		return body
	}
	return Header(s.line, s.file) + body
}

// String implements fmt.Stringer. It is the backtrace without a header in Default format.
func (s *Source) String() string {
	return s.Render(Default, false, false)
}

// GoString implements fmt.GoStringer, used with %#v.
func (s *Source) GoString() string {
	return fmt.Sprintf("Source {\n    line: %d,\n    file: %s,\n    backtrace:\n%s}", s.line, s.file, s.String())
}

type jsonFrame struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	Addr  string `json:"addr,omitempty"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitzero"`
}

type jsonSource struct {
	Line   int         `json:"line"`
	File   string      `json:"file"`
	Frames []jsonFrame `json:"frames"`
}

// MarshalJSON implements json.Marshaler. The frames are the ones Render() prints, innermost first.
func (s *Source) MarshalJSON() ([]byte, error) {
	syms := s.Symbols()
	js := jsonSource{Line: s.line, File: s.file, Frames: make([]jsonFrame, 0, len(syms))}
	for i, sym := range syms {
		jf := jsonFrame{Index: i, Name: sym.Name, File: sym.File, Line: sym.Line}
		if sym.HasAddr() {
			jf.Addr = "0x" + strconv.FormatUint(uint64(sym.Addr), 16)
		}
		js.Frames = append(js.Frames, jf)
	}
	return json.Marshal(js)
}

/*
Package stack records the program counters of the running goroutine and resolves them to symbols.

This is the low level service the backtrace package is built on. A Snapshot is captured eagerly with
Capture(), but symbol resolution is deferred until Frames() is first called and is remembered after
that, so a Snapshot always resolves to the same symbols.

Most users never need this package directly. Use backtrace.New() or the constructors in the errors
package instead.
*/
package stack

import (
	"runtime"
	"sync"
)

// initialDepth is the number of program counters we first try to capture. The buffer doubles
// until the whole stack fits.
const initialDepth = 1 << 5

// Symbol is the resolved information for a program counter. Any field may be its zero value, which
// means the resolver could not determine it (stripped binaries, assembly, cgo frames, ...).
type Symbol struct {
	// Name is the package qualified function name, like "github.com/user/project/pkg.(*T).Method".
	Name string
	// Addr is the program counter the symbol was resolved from.
	Addr uintptr
	// File is the source file of the symbol.
	File string
	// Line is the 1-based source line, or zero if unknown.
	Line int
}

// HasName reports if the symbol has a name.
func (s Symbol) HasName() bool {
	return s.Name != ""
}

// HasAddr reports if the symbol has an address.
func (s Symbol) HasAddr() bool {
	return s.Addr != 0
}

// HasFile reports if the symbol has a source file.
func (s Symbol) HasFile() bool {
	return s.File != ""
}

// HasLine reports if the symbol has a source line.
func (s Symbol) HasLine() bool {
	return s.Line > 0
}

// Resolver turns a program counter into zero or more symbols. More than one symbol is returned when
// the compiler inlined calls into the physical frame, innermost call first. A Resolver must return
// the same result every time it is called with the same pc.
type Resolver interface {
	Resolve(pc uintptr) []Symbol
}

// EntryResolver is implemented by resolvers that can resolve the entry address of the function
// containing pc. It is used as a fallback when Resolve() returns nothing.
type EntryResolver interface {
	ResolveEntry(pc uintptr) []Symbol
}

// ResolverFunc is an adapter to allow the use of ordinary functions as a Resolver.
type ResolverFunc func(pc uintptr) []Symbol

// Resolve implements Resolver.Resolve().
func (r ResolverFunc) Resolve(pc uintptr) []Symbol {
	return r(pc)
}

// Runtime resolves program counters using the symbol tables of the Go runtime.
type Runtime struct{}

var (
	_ Resolver      = Runtime{}
	_ EntryResolver = Runtime{}
)

// Resolve implements Resolver.Resolve().
func (Runtime) Resolve(pc uintptr) []Symbol {
	var syms []Symbol

	// CallersFrames adjusts each pc on its own, so resolving one at a time gives the same
	// answer as resolving the whole slice.
	frames := runtime.CallersFrames([]uintptr{pc})
	for {
		f, more := frames.Next()
		if f == (runtime.Frame{}) {
			break
		}
		syms = append(syms, Symbol{Name: f.Function, Addr: f.PC, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return syms
}

// ResolveEntry implements EntryResolver.ResolveEntry().
func (Runtime) ResolveEntry(pc uintptr) []Symbol {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return nil
	}
	file, line := fn.FileLine(fn.Entry())
	return []Symbol{{Name: fn.Name(), Addr: fn.Entry(), File: file, Line: line}}
}

// Frame is a single physical stack frame.
type Frame struct {
	pc      uintptr
	symbols []Symbol
}

// PC returns the program counter of the frame.
func (f Frame) PC() uintptr {
	return f.pc
}

// Symbols returns the symbols of the frame, innermost inlined call first. This can be empty.
// The returned slice must not be modified.
func (f Frame) Symbols() []Symbol {
	return f.symbols
}

// Snapshot is a captured call stack. It is immutable and safe for concurrent use.
type Snapshot struct {
	pcs      []uintptr
	resolver Resolver

	once   sync.Once
	frames []Frame
}

// Capture records the call stack of the calling goroutine. The first frame of the Snapshot is
// Capture itself.
//
//go:noinline
func Capture() *Snapshot {
	pcs := make([]uintptr, initialDepth)
	for {
		// skip [runtime.Callers]
		n := runtime.Callers(1, pcs)
		if n < len(pcs) {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, len(pcs)*2)
	}
	return &Snapshot{pcs: pcs, resolver: Runtime{}}
}

// NewSnapshot creates a Snapshot from program counters that were already recorded, resolved with r.
// If r is nil, Runtime is used. pcs is copied.
func NewSnapshot(pcs []uintptr, r Resolver) *Snapshot {
	if r == nil {
		r = Runtime{}
	}
	cp := make([]uintptr, len(pcs))
	copy(cp, pcs)
	return &Snapshot{pcs: cp, resolver: r}
}

// Len returns the number of physical frames in the Snapshot.
func (s *Snapshot) Len() int {
	return len(s.pcs)
}

// PCs returns a copy of the program counters in the Snapshot, innermost first.
func (s *Snapshot) PCs() []uintptr {
	cp := make([]uintptr, len(s.pcs))
	copy(cp, s.pcs)
	return cp
}

// Frames returns the frames of the Snapshot, innermost first. Symbols are resolved on the first call.
// The returned slice must not be modified.
func (s *Snapshot) Frames() []Frame {
	s.once.Do(func() {
		s.frames = make([]Frame, 0, len(s.pcs))
		for _, pc := range s.pcs {
			s.frames = append(s.frames, Frame{pc: pc, symbols: resolve(s.resolver, pc)})
		}
	})
	return s.frames
}

// Symbols returns the symbols of all frames in order, innermost first.
func (s *Snapshot) Symbols() []Symbol {
	var syms []Symbol
	for _, f := range s.Frames() {
		syms = append(syms, f.symbols...)
	}
	return syms
}

func resolve(r Resolver, pc uintptr) []Symbol {
	syms := r.Resolve(pc)
	if len(syms) > 0 {
		return syms
	}
	if er, ok := r.(EntryResolver); ok {
		return er.ResolveEntry(pc)
	}
	return nil
}

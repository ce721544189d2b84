package stack

import (
	"strings"
	"sync"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestCapture(t *testing.T) {
	t.Parallel()

	snap := Capture()
	if snap.Len() == 0 {
		t.Fatalf("TestCapture: got 0 frames")
	}

	syms := snap.Symbols()
	if len(syms) < 2 {
		t.Fatalf("TestCapture: got %d symbols, want at least 2", len(syms))
	}
	if !strings.HasSuffix(syms[0].Name, "stack.Capture") {
		t.Errorf("TestCapture: first symbol: got %q, want stack.Capture", syms[0].Name)
	}
	if !strings.HasSuffix(syms[1].Name, "stack.TestCapture") {
		t.Errorf("TestCapture: second symbol: got %q, want stack.TestCapture", syms[1].Name)
	}
	if !strings.HasSuffix(syms[1].File, "stack_test.go") {
		t.Errorf("TestCapture: second symbol file: got %q, want stack_test.go", syms[1].File)
	}
	if !syms[1].HasLine() || !syms[1].HasAddr() {
		t.Errorf("TestCapture: second symbol is missing line or address: %+v", syms[1])
	}
}

type countingResolver struct {
	mu    sync.Mutex
	calls map[uintptr]int
	syms  map[uintptr][]Symbol
}

func (c *countingResolver) Resolve(pc uintptr) []Symbol {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[pc]++
	return c.syms[pc]
}

func TestSnapshotFrames(t *testing.T) {
	t.Parallel()

	r := &countingResolver{
		calls: map[uintptr]int{},
		syms: map[uintptr][]Symbol{
			1: {{Name: "a"}},
			2: {{Name: "inlined", Line: 3}, {Name: "physical", Line: 9}},
			3: nil,
		},
	}
	pcs := []uintptr{1, 2, 3}
	snap := NewSnapshot(pcs, r)
	pcs[0] = 100 // NewSnapshot must have copied.

	want := []Frame{
		{pc: 1, symbols: []Symbol{{Name: "a"}}},
		{pc: 2, symbols: []Symbol{{Name: "inlined", Line: 3}, {Name: "physical", Line: 9}}},
		{pc: 3},
	}

	for i := 0; i < 3; i++ {
		got := snap.Frames()
		if diff := pretty.Compare(want, got); diff != "" {
			t.Fatalf("TestSnapshotFrames(call %d): -want/+got:\n%s", i, diff)
		}
	}

	for pc, n := range r.calls {
		if n != 1 {
			t.Errorf("TestSnapshotFrames: pc %d resolved %d times, want 1", pc, n)
		}
	}

	wantSyms := []Symbol{{Name: "a"}, {Name: "inlined", Line: 3}, {Name: "physical", Line: 9}}
	if diff := pretty.Compare(wantSyms, snap.Symbols()); diff != "" {
		t.Errorf("TestSnapshotFrames(Symbols): -want/+got:\n%s", diff)
	}
}

type entryResolver struct {
	ResolverFunc
}

func (entryResolver) ResolveEntry(pc uintptr) []Symbol {
	return []Symbol{{Name: "entry", Addr: pc - 1}}
}

func TestEntryFallback(t *testing.T) {
	t.Parallel()

	empty := ResolverFunc(func(uintptr) []Symbol { return nil })

	tests := []struct {
		name     string
		resolver Resolver
		want     []Symbol
	}{
		{
			name:     "resolver without entry fallback",
			resolver: empty,
		},
		{
			name:     "resolver with entry fallback",
			resolver: entryResolver{empty},
			want:     []Symbol{{Name: "entry", Addr: 9}},
		},
	}

	for _, test := range tests {
		got := NewSnapshot([]uintptr{10}, test.resolver).Symbols()
		if diff := pretty.Compare(test.want, got); diff != "" {
			t.Errorf("TestEntryFallback(%s): -want/+got:\n%s", test.name, diff)
		}
	}
}

func TestRuntimeResolveEntry(t *testing.T) {
	t.Parallel()

	pcs := Capture().PCs()
	got := Runtime{}.ResolveEntry(pcs[0])
	if len(got) != 1 {
		t.Fatalf("TestRuntimeResolveEntry: got %d symbols, want 1", len(got))
	}
	if !strings.HasSuffix(got[0].Name, "stack.Capture") {
		t.Errorf("TestRuntimeResolveEntry: got name %q, want stack.Capture", got[0].Name)
	}
	if got[0].Addr > pcs[0] {
		t.Errorf("TestRuntimeResolveEntry: entry %#x is after pc %#x", got[0].Addr, pcs[0])
	}
	if (Runtime{}).ResolveEntry(0) != nil {
		t.Errorf("TestRuntimeResolveEntry: pc 0 should not resolve")
	}
}

func TestSymbolHas(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sym  Symbol
		want [4]bool
	}{
		{name: "empty"},
		{name: "full", sym: Symbol{Name: "n", Addr: 1, File: "f", Line: 2}, want: [4]bool{true, true, true, true}},
		{name: "line zero is unknown", sym: Symbol{File: "f"}, want: [4]bool{false, false, true, false}},
	}

	for _, test := range tests {
		got := [4]bool{test.sym.HasName(), test.sym.HasAddr(), test.sym.HasFile(), test.sym.HasLine()}
		if got != test.want {
			t.Errorf("TestSymbolHas(%s): got %v, want %v", test.name, got, test.want)
		}
	}
}

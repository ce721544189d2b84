package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gostdlib/traceerr/backtrace"
	"github.com/gostdlib/traceerr/stack"

	"github.com/kylelemons/godebug/pretty"
)

// appErr is an error type that can be created from other errors.
type appErr struct {
	msg string
	err error
}

func (e appErr) Error() string {
	return e.msg
}

func (e appErr) Unwrap() error {
	return e.err
}

func (appErr) From(err error) appErr {
	return appErr{msg: "app: " + err.Error(), err: err}
}

// cmdErr is an error type of another layer that can be created from appErr.
type cmdErr struct {
	err error
}

func (e cmdErr) Error() string {
	return "cmd: " + e.err.Error()
}

func (e cmdErr) Unwrap() error {
	return e.err
}

func (cmdErr) From(err error) cmdErr {
	return cmdErr{err: err}
}

// ptrErr is an error type implemented on its pointer.
type ptrErr struct {
	msg string
}

func (e *ptrErr) Error() string {
	return e.msg
}

// fakeSource returns a Source with a backtrace of main.run at main.go:3 that originated at f.go:7.
func fakeSource() *backtrace.Source {
	syms := map[uintptr][]stack.Symbol{
		1: {{Name: "github.com/gostdlib/traceerr/stack.Capture", Addr: 1}},
		2: {{Name: "github.com/gostdlib/traceerr/backtrace.New", Addr: 2}},
		3: {{Name: "main.run", Addr: 0x10, File: "main.go", Line: 3}},
		4: {{}},
	}
	snap := stack.NewSnapshot([]uintptr{1, 2, 3, 4}, stack.ResolverFunc(func(pc uintptr) []stack.Symbol {
		return syms[pc]
	}))
	return backtrace.FromSnapshot(snap, 7, "f.go")
}

func TestNewTrace(t *testing.T) {
	t.Parallel()

	err := New("boom")
	bt := fakeSource()

	tests := []struct {
		name string
		// btFirst reads the backtrace before the error.
		btFirst bool
	}{
		{name: "error then backtrace"},
		{name: "backtrace then error", btFirst: true},
	}

	for _, test := range tests {
		tr := NewTrace(err, bt)

		var (
			gotErr error
			gotBT  *backtrace.Source
		)
		if test.btFirst {
			gotBT = tr.Backtrace()
			gotErr = tr.Err()
		} else {
			gotErr = tr.Err()
			gotBT = tr.Backtrace()
		}

		if gotErr != err {
			t.Errorf("TestNewTrace(%s): Err(): got %v, want %v", test.name, gotErr, err)
		}
		if gotBT != bt {
			t.Errorf("TestNewTrace(%s): Backtrace() did not return the bound backtrace", test.name)
		}
		if gotBT.Raw() != bt.Raw() {
			t.Errorf("TestNewTrace(%s): Backtrace().Raw() is not the captured snapshot", test.name)
		}
	}
}

func TestNilTrace(t *testing.T) {
	t.Parallel()

	var tr *Trace[appErr]

	if diff := pretty.Compare(appErr{}, tr.Err()); diff != "" {
		t.Errorf("TestNilTrace: Err(): -want/+got:\n%s", diff)
	}
	if tr.Backtrace() != nil {
		t.Errorf("TestNilTrace: Backtrace(): got non-nil")
	}
	if tr.Unwrap() != nil {
		t.Errorf("TestNilTrace: Unwrap(): got non-nil")
	}
	if got := tr.Error(); got != "<nil>" {
		t.Errorf("TestNilTrace: Error(): got %q, want <nil>", got)
	}
	if got := fmt.Sprintf("%v|%+v|%#v", tr, tr, tr); got != "<nil>|<nil>|<nil>" {
		t.Errorf("TestNilTrace: fmt: got %q", got)
	}
	if Convert(tr, func(e appErr) cmdErr { return cmdErr{err: e} }) != nil {
		t.Errorf("TestNilTrace: Convert() of a nil Trace should be nil")
	}
}

func TestTypedNil(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tr   *Trace[*ptrErr]
	}{
		{name: "Throw", tr: Throw[*ptrErr](nil)},
		{name: "NewTrace", tr: NewTrace[*ptrErr](nil, fakeSource())},
	}

	for _, test := range tests {
		if got := test.tr.Error(); got != "<nil>" {
			t.Errorf("TestTypedNil(%s): Error(): got %q, want <nil>", test.name, got)
		}
		if test.tr.Unwrap() != nil {
			t.Errorf("TestTypedNil(%s): Unwrap(): got non-nil", test.name)
		}
		if got := test.tr.String(); !strings.HasPrefix(got, "<nil>\nStack backtrace for task") {
			t.Errorf("TestTypedNil(%s): String(): got %q", test.name, got)
		}
		if _, err := test.tr.MarshalJSON(); err != nil {
			t.Errorf("TestTypedNil(%s): MarshalJSON(): %s", test.name, err)
		}
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	bt := fakeSource()
	tr := NewTrace(New("boom"), bt)

	tests := []struct {
		name    string
		got     string
		header  bool
		reverse bool
	}{
		{name: "forward", got: tr.Render(nil, false, false)},
		{name: "forward with header", got: tr.Render(backtrace.Default, true, false), header: true},
		{name: "reverse", got: tr.Render(nil, false, true), reverse: true},
		{name: "String() is the headered forward render", got: tr.String(), header: true},
		{name: "%+v", got: fmt.Sprintf("%+v", tr), header: true},
	}

	for _, test := range tests {
		want := "boom\n" + bt.Render(backtrace.Default, test.header, test.reverse)
		if test.got != want {
			t.Errorf("TestRender(%s): got\n%s\nwant\n%s", test.name, test.got, want)
		}
	}

	if got := NewTrace(New("boom"), nil).Render(nil, true, false); got != "boom\n" {
		t.Errorf("TestRender(no backtrace): got %q, want %q", got, "boom\n")
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	sentinel := New("boom")
	tr := NewTrace(sentinel, fakeSource())

	tests := []struct {
		name   string
		format string
		want   string
	}{
		{name: "%v", format: "%v", want: "boom"},
		{name: "%s", format: "%s", want: "boom"},
		{name: "%q", format: "%q", want: `"boom"`},
		{name: "%d is the error text", format: "%d", want: "boom"},
	}

	for _, test := range tests {
		if got := fmt.Sprintf(test.format, tr); got != test.want {
			t.Errorf("TestFormat(%s): got %q, want %q", test.name, got, test.want)
		}
	}

	gs := fmt.Sprintf("%#v", tr)
	if !strings.HasPrefix(gs, "Trace {\n    error: boom,\n    backtrace: Source {\n    line: 7,\n    file: f.go,") {
		t.Errorf("TestFormat(%%#v): got\n%s", gs)
	}

	wrapped := fmt.Errorf("loading: %w", tr)
	if wrapped.Error() != "loading: boom" {
		t.Errorf("TestFormat(%%w): got %q, want %q", wrapped.Error(), "loading: boom")
	}
	if !Is(wrapped, sentinel) {
		t.Errorf("TestFormat(%%w): Is() does not find the bound error")
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	bt := fakeSource()
	tr := NewTrace(appErr{msg: "app"}, bt)

	got := Convert(tr, func(e appErr) cmdErr { return cmdErr{err: e} })

	if got.Backtrace() != bt || got.Backtrace().Raw() != bt.Raw() {
		t.Errorf("TestConvert: backtrace was not moved to the new Trace")
	}
	if got.Error() != "cmd: app" {
		t.Errorf("TestConvert: Error(): got %q, want %q", got.Error(), "cmd: app")
	}
	if tr.Backtrace() != nil {
		t.Errorf("TestConvert: the converted Trace still holds the backtrace")
	}
	if diff := pretty.Compare(appErr{}, tr.Err()); diff != "" {
		t.Errorf("TestConvert: the converted Trace still holds the error: -want/+got:\n%s", diff)
	}
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	sentinel := New("sentinel")
	tr := NewTrace(appErr{msg: "app", err: sentinel}, fakeSource())

	if !Is(tr, sentinel) {
		t.Errorf("TestUnwrap: Is() does not look through the Trace")
	}

	var ae appErr
	if !As(tr, &ae) || ae.msg != "app" {
		t.Errorf("TestUnwrap: As() does not find the bound error")
	}

	var back *Trace[appErr]
	if !As(fmt.Errorf("wrap: %w", tr), &back) || back != tr {
		t.Errorf("TestUnwrap: As() does not find the Trace in a chain")
	}

	if NewTrace[error](nil, nil).Unwrap() != nil {
		t.Errorf("TestUnwrap: a nil bound error should unwrap to nil")
	}
}

func TestMarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := NewTrace(New("boom"), fakeSource()).MarshalJSON()
	if err != nil {
		t.Fatalf("TestMarshalJSON: unexpected error: %s", err)
	}

	want := `{"error":"boom","type":"*errors.errorString","backtrace":{"line":7,"file":"f.go","frames":[` +
		`{"index":0,"name":"main.run","addr":"0x10","file":"main.go","line":3},{"index":1}]}}`
	if string(b) != want {
		t.Errorf("TestMarshalJSON: got\n%s\nwant\n%s", b, want)
	}

	b, err = NewTrace(appErr{msg: "app"}, nil).MarshalJSON()
	if err != nil {
		t.Fatalf("TestMarshalJSON(no backtrace): unexpected error: %s", err)
	}
	if want := `{"error":"app","type":"errors.appErr"}`; string(b) != want {
		t.Errorf("TestMarshalJSON(no backtrace): got %s, want %s", b, want)
	}
}

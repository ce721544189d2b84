/*
Package errors binds an error to the backtrace captured where it was first raised, so that the
origin of an error survives as it is returned up the call chain and re-typed across package
boundaries.

A Trace is never created twice for the same failure. Functions that may fail return a *Trace
and use one of three operations:

	// Fail raises a new error and captures the stack here.
	func load(path string) (Config, *errors.Trace[AppErr]) {
		if path == "" {
			return errors.Fail[Config](AppErr{Kind: KindArgs})
		}

		// TryFrom forwards a plain error from code that doesn't use this package. On failure
		// the stack is captured here and the error is converted with AppErr.From().
		f, tr := errors.TryFrom[AppErr](os.Open(path))
		if tr != nil {
			return Config{}, tr
		}
		defer f.Close()
		...
	}

	func run() *errors.Trace[CmdErr] {
		// Rethrow forwards an error that already has a trace. It converts AppErr to CmdErr
		// with CmdErr.From(), but keeps the original backtrace.
		cfg, tr := errors.Rethrow[CmdErr](load(*path))
		if tr != nil {
			return tr
		}
		...
	}

Conversions are driven by the From constraint. An error type that can be created from other
errors implements it on its value receiver:

	type AppErr struct {
		Kind Kind
		Err  error
	}

	func (AppErr) From(err error) AppErr {
		return AppErr{Kind: KindIO, Err: err}
	}

Printing a Trace with %+v or calling String() gives the error followed by the backtrace:

	no such file or directory
	Stack backtrace for task "<goroutine 1>" at line 12 of "/src/app/main.go":
	   0:           0x4a2f1c - main.load
	                        at /src/app/main.go:12
	...

%v and %s print only the error text, so a Trace can be wrapped with fmt.Errorf("...: %w", tr)
without putting the backtrace in the message. This also means fmt.Println(tr) prints a single
line; use fmt.Printf("%+v\n", tr) or tr.String() to print the backtrace with it.

A Trace also knows how to log itself with Log(), how to record itself on the OpenTelemetry span
in a Context with Record(), and every captured backtrace is counted in the "traceerr.captures"
metric of the default meter provider.

This package also provides the functions of the standard library's errors package so that it
doesn't need to be imported under another name.
*/
package errors

import (
	"fmt"
	"io"
	"reflect"

	"github.com/gostdlib/traceerr/backtrace"

	"github.com/go-json-experiment/json"
)

// From is implemented by error types that can be created from any other error. From is called on
// the zero value of E, so it must not depend on the receiver.
type From[E any] interface {
	error
	From(err error) E
}

// Trace is an error bound to the backtrace of where it was raised. Traces are created by Throw(),
// ThrowFrom(), Try(), TryFrom() and Fail(). A *Trace may be sent to another goroutine if E may be.
type Trace[E error] struct {
	err E
	bt  *backtrace.Source
}

// traced is implemented by *Trace for any error type.
type traced interface {
	error
	Backtrace() *backtrace.Source
	cause() error
}

var (
	_ traced        = (*Trace[error])(nil)
	_ fmt.Formatter = (*Trace[error])(nil)
	_ LogAttrer     = (*Trace[error])(nil)
)

// NewTrace binds err to a backtrace that was already captured. Most users want Throw() instead.
func NewTrace[E error](err E, bt *backtrace.Source) *Trace[E] {
	return &Trace[E]{err: err, bt: bt}
}

// Err returns the error without the backtrace.
func (t *Trace[E]) Err() E {
	if t == nil {
		var zero E
		return zero
	}
	return t.err
}

// Backtrace returns the backtrace bound to the error. It is nil for a nil Trace.
func (t *Trace[E]) Backtrace() *backtrace.Source {
	if t == nil {
		return nil
	}
	return t.bt
}

// Render returns the error text followed by a newline and the backtrace formatted with f.
// See backtrace.Source.Render() for header and reverse.
func (t *Trace[E]) Render(f backtrace.SymbolFormatter, header, reverse bool) string {
	if t == nil {
		return "<nil>"
	}
	s := t.Error() + "\n"
	if t.bt != nil {
		s += t.bt.Render(f, header, reverse)
	}
	return s
}

// Convert converts the error in t with fn and moves the backtrace to the returned Trace, which
// keeps reporting where the error was first raised. t must not be used afterwards. A nil t
// returns nil.
func Convert[O error, E error](t *Trace[E], fn func(E) O) *Trace[O] {
	if t == nil {
		return nil
	}
	n := &Trace[O]{err: fn(t.err), bt: t.bt}

	var zero E
	t.err = zero
	t.bt = nil
	return n
}

// Error implements error.Error(). It is the text of the bound error.
func (t *Trace[E]) Error() string {
	if t == nil {
		return "<nil>"
	}
	if isNil(t.err) {
		return "<nil>"
	}
	return t.err.Error()
}

// Unwrap returns the bound error, so that errors.Is() and errors.As() look through the Trace.
func (t *Trace[E]) Unwrap() error {
	if t == nil || isNil(t.err) {
		return nil
	}
	return t.err
}

// isNil reports if err is nil or a typed nil, like a nil *T stored in E.
func isNil(err any) bool {
	if err == nil {
		return true
	}
	switch v := reflect.ValueOf(err); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func (t *Trace[E]) cause() error {
	return t.Unwrap()
}

// String implements fmt.Stringer. It is the error followed by the headered backtrace in
// backtrace.Default format.
func (t *Trace[E]) String() string {
	return t.Render(backtrace.Default, true, false)
}

// Format implements fmt.Formatter. %+v writes String(), %#v writes the bound error and the
// backtrace's GoString(), %q writes the quoted error text and %v or %s write the error text.
func (t *Trace[E]) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		switch {
		case s.Flag('+'):
			io.WriteString(s, t.String())
			return
		case s.Flag('#'):
			if t == nil {
				io.WriteString(s, "<nil>")
				return
			}
			fmt.Fprintf(s, "Trace {\n    error: %s,\n    backtrace: %#v\n}", t.Error(), t.bt)
			return
		}
		io.WriteString(s, t.Error())
	case 'q':
		fmt.Fprintf(s, "%q", t.Error())
	default:
		io.WriteString(s, t.Error())
	}
}

type jsonTrace struct {
	Error     string            `json:"error"`
	Type      string            `json:"type"`
	Backtrace *backtrace.Source `json:"backtrace,omitzero"`
}

// MarshalJSON implements json.Marshaler.
func (t *Trace[E]) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	return json.Marshal(jsonTrace{Error: t.Error(), Type: fmt.Sprintf("%T", t.err), Backtrace: t.bt})
}

/*
Package errors is an example of a service specific errors package built on
github.com/gostdlib/traceerr/errors. A service defines its own error type that implements the From
constraint, so plain errors from other packages can be forwarded into it with TryFrom() and errors of
other services with Rethrow().
*/
package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	traceerr "github.com/gostdlib/traceerr/errors"
)

// Kind is the kind of the error.
type Kind uint8

const (
	// KindUnknown represents an unknown kind. This should not be used.
	KindUnknown Kind = 0
	// KindIO represents an error reading or writing a file.
	KindIO Kind = 1
	// KindOne is an example kind.
	KindOne Kind = 2
	// KindTwo is an example kind.
	KindTwo Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "IO"
	case KindOne:
		return "One"
	case KindTwo:
		return "Two"
	}
	return "Unknown"
}

// Error is the error type for this service.
type Error struct {
	// Kind is the kind of the error.
	Kind Kind
	// Err is the error that caused this one, if any.
	Err error
}

var (
	_ traceerr.From[Error] = Error{}
	_ traceerr.LogAttrer   = Error{}
)

// Error implements the error interface.
func (e Error) Error() string {
	switch e.Kind {
	case KindOne:
		return "Error One"
	case KindTwo:
		return "Error Two"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "Unknown error"
}

// Unwrap unwraps the error.
func (e Error) Unwrap() error {
	return e.Err
}

// Is returns true if the target is an Error of the same Kind.
func (e Error) Is(target error) bool {
	if t, ok := target.(Error); ok {
		return t.Kind == e.Kind
	}
	return false
}

// From implements traceerr.From. File system errors become KindIO, an Error in the chain of err is
// kept and anything else is KindUnknown.
func (Error) From(err error) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return Error{Kind: KindIO, Err: err}
	}
	return Error{Kind: KindUnknown, Err: err}
}

// LogAttrs implements traceerr.LogAttrer.
func (e Error) LogAttrs(context.Context) []slog.Attr {
	return []slog.Attr{slog.Group("github.com/gostdlib/traceerr/errors/example.Error", "Kind", e.Kind.String())}
}

// Trace is the traced error returned by functions of this service.
type Trace = traceerr.Trace[Error]

// E raises an Error of kind k at the caller of E.
func E(k Kind) *Trace {
	return traceerr.Throw(Error{Kind: k}, traceerr.WithCallNum(2))
}

// Basic always succeeds with 42.
func Basic() (int, *Trace) {
	return 42, nil
}

// Run forwards the result of Basic() and prints it to w. It then opens path, which fails with a
// Trace whose backtrace starts in Run if path does not exist.
func Run(w io.Writer, path string) *Trace {
	meaning, tr := traceerr.Rethrow[Error](Basic())
	if tr != nil {
		return tr
	}
	fmt.Fprintln(w, meaning)

	f, tr := traceerr.TryFrom[Error](os.Open(path))
	if tr != nil {
		return tr
	}
	if err := f.Close(); err != nil {
		return traceerr.ThrowFrom[Error](err)
	}
	return nil
}

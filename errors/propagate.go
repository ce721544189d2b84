package errors

import (
	"errors"
	"runtime"

	"github.com/gostdlib/traceerr/backtrace"
)

type opts struct {
	callNum int
}

// Option is an optional argument for Throw(), ThrowFrom() and Fail().
type Option func(opts) opts

// WithCallNum is used if you wrap Throw(), ThrowFrom() or Fail() in your own function. The backtrace
// and the file and line then belong to the caller of your wrapper instead of your wrapper. Add 1 for
// every wrapper. This defaults to 1, which is the caller of Throw().
func WithCallNum(i int) Option {
	return func(o opts) opts {
		if i < 0 {
			i = 0
		}
		o.callNum = i
		return o
	}
}

func newOpts(options []Option) opts {
	o := opts{callNum: 1}
	for _, f := range options {
		o = f(o)
	}
	return o
}

// Throw raises err with a backtrace captured at the caller of Throw. If err is itself a *Trace of
// type E, its bound error and backtrace are reused instead of nesting one Trace in another.
// A nil error interface is replaced with a "bug: nil error" when E can hold it. A typed nil, like
// a nil *MyErr, is kept: the Trace's Error() is then "<nil>" and Unwrap() is nil.
func Throw[E error](err E, options ...Option) *Trace[E] {
	if t, ok := adoptAs(err); ok {
		return t
	}
	if any(err) == nil {
		if e, ok := any(errors.New("bug: nil error")).(E); ok {
			err = e
		}
	}
	return capture(err, newOpts(options))
}

// ThrowFrom is like Throw(), but converts err to E with E's From method. If err already is an E,
// it is used as is. If err is a *Trace, its backtrace is reused.
func ThrowFrom[E From[E]](err error, options ...Option) *Trace[E] {
	if cause, bt, ok := adopt(err); ok {
		return NewTrace(from[E](cause), bt)
	}
	return capture(from[E](err), newOpts(options))
}

// Fail is Throw() for functions that return a value and an error. The value is the zero value of
// T. The returned Trace does not need to be returned right away:
//
//	func parse(s string) (int, *errors.Trace[ParseErr]) {
//		if s == "" {
//			return errors.Fail[int](ParseErr{Reason: "empty"})
//		}
//		...
//	}
func Fail[T any, E error](err E, options ...Option) (T, *Trace[E]) {
	var zero T
	if t, ok := adoptAs(err); ok {
		return zero, t
	}
	return zero, capture(err, newOpts(options))
}

// Try forwards the result of a function that returns a plain error. If err is nil, v is returned
// and nothing is captured. Otherwise the backtrace is captured at the caller of Try, unless err is a
// *Trace whose backtrace is reused. v is always returned as given.
//
//	f, tr := errors.Try(os.Open(path))
//	if tr != nil {
//		return tr
//	}
func Try[T any](v T, err error) (T, *Trace[error]) {
	if err == nil {
		return v, nil
	}
	if cause, bt, ok := adopt(err); ok {
		return v, NewTrace(cause, bt)
	}
	return v, capture(err, opts{callNum: 1})
}

// TryFrom is like Try(), but converts err to E with E's From method. E must be given, T is
// inferred:
//
//	f, tr := errors.TryFrom[AppErr](os.Open(path))
func TryFrom[E From[E], T any](v T, err error) (T, *Trace[E]) {
	if err == nil {
		return v, nil
	}
	if cause, bt, ok := adopt(err); ok {
		return v, NewTrace(from[E](cause), bt)
	}
	return v, capture(from[E](err), opts{callNum: 1})
}

// Rethrow forwards the result of a function that returns a *Trace. If t is nil, v is returned.
// Otherwise the error in t is converted to O with O's From method and the backtrace is moved to the
// returned Trace. Rethrow never captures, so the backtrace still shows where the error was raised.
// t must not be used afterwards. O must be given, E and T are inferred:
//
//	cfg, tr := errors.Rethrow[CmdErr](load(path))
func Rethrow[O From[O], E error, T any](v T, t *Trace[E]) (T, *Trace[O]) {
	if t == nil {
		return v, nil
	}
	return v, Convert(t, func(e E) O { return from[O](e) })
}

// from converts err to E. err is returned as is if it already is an E.
func from[E From[E]](err error) E {
	if e, ok := err.(E); ok {
		return e
	}
	var zero E
	return zero.From(err)
}

// adopt returns the bound error and backtrace of err if err is a *Trace with a backtrace. A Trace
// found deeper in the chain of err is not adopted, as that would drop what wraps it.
func adopt(err error) (error, *backtrace.Source, bool) {
	t, ok := err.(traced)
	if !ok || t.Backtrace() == nil {
		return err, nil, false
	}
	return t.cause(), t.Backtrace(), true
}

// adoptAs is adopt() for callers that must keep E.
func adoptAs[E error](err E) (*Trace[E], bool) {
	cause, bt, ok := adopt(err)
	if !ok {
		return nil, false
	}
	e, ok := cause.(E)
	if !ok {
		return nil, false
	}
	return NewTrace(e, bt), true
}

// capture must be called directly by the exported function, as the depth between the user and
// backtrace.NewSkip() is part of the skip.
func capture[E error](err E, o opts) *Trace[E] {
	_, file, line, ok := runtime.Caller(1 + o.callNum)
	if !ok {
		file = "unknown"
	}

	t := &Trace[E]{
		err: err,
		// Hides capture() and the exported function.
		bt: backtrace.NewSkip(1+o.callNum, line, file),
	}
	countCapture(err)
	return t
}

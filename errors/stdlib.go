package errors

import "errors"

// ErrUnsupported indicates that a requested operation cannot be performed, because it is unsupported.
var ErrUnsupported = errors.ErrUnsupported

// New returns an error that formats as the given text. Each call to New returns a distinct error
// value even if the text is identical.
func New(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's tree matches target. A Trace matches what its bound
// error matches.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target, and if one is found, sets target to
// that error value and returns true. Otherwise, it returns false.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err, if err's type contains an Unwrap
// method returning error. Otherwise, Unwrap returns nil.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join returns an error that wraps the given errors. Any nil error values are discarded.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

package module

import "errors"

// ErrMissingInput is returned by the input accessors when a port carries no datum.
var ErrMissingInput = errors.New("input has no datum")

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return "fatal: " + e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as a fatal failure: the scheduler aborts the whole run
// instead of isolating the failing module.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err, or any error it wraps, was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

package model

import "fmt"

// ErrorKind is the machine-readable failure classification surfaced to
// callers alongside the textual diagnostic.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindDegenerateGeometry ErrorKind = "degenerate_geometry"
	KindClippingFailure    ErrorKind = "clipping_failure"
	KindCapacityExhausted  ErrorKind = "capacity_exhausted"
	KindCancelled          ErrorKind = "cancelled"
	KindInternal           ErrorKind = "internal"
)

// NestError carries an ErrorKind through the error chain.
type NestError struct {
	Kind ErrorKind
	Err  error
}

func (e *NestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *NestError) Unwrap() error { return e.Err }

// NewError builds a NestError from a format string.
func NewError(kind ErrorKind, format string, args ...any) error {
	return &NestError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapError attaches a kind to an existing error. A nil err returns nil.
func WrapError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &NestError{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindInternal when the chain
// carries none.
func KindOf(err error) ErrorKind {
	for err != nil {
		if ne, ok := err.(*NestError); ok {
			return ne.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindInternal
}

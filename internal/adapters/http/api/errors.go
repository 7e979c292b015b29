package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrBackpressure  = errors.New("backpressure")
	ErrNotFound      = errors.New("not found")
	ErrUnprocessable = errors.New("unprocessable")
	ErrUnavailable   = errors.New("unavailable")
	ErrInternal      = errors.New("internal error")
)

// KindError tags an error with the operation that produced it and the API
// kind it maps to.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of kind without a cause.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op, keeping an existing kind or falling back to
// ErrInternal.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ke *KindError
	if errors.As(err, &ke) {
		return &KindError{Op: op, Kind: ke.Kind, Err: err}
	}
	return &KindError{Op: op, Kind: ErrInternal, Err: err}
}

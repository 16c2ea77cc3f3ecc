package rvpack

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type PackError interface {
	error
	WithMessage(message string) PackError
	Wrap(err error) PackError
}

type baseRvpackError string

const rootError = baseRvpackError("")

// ErrCantPack is the family of recoverable failures raised while preparing
// data for compression: bad sizes, out-of-range buffer requests, and so on.
var ErrCantPack = rootError.WithMessage("Can't pack")
var ErrCantUnpack = rootError.WithMessage("Can't unpack")
var ErrInternal = rootError.WithMessage("Internal error")
var ErrOutOfMemory = rootError.WithMessage("Out of memory")
var ErrInvalidArgument = rootError.WithMessage("Invalid argument")
var ErrOutOfRange = rootError.WithMessage("Numerical argument out of range")
var ErrNotSupported = rootError.WithMessage("Operation not supported")

func (e baseRvpackError) Error() string {
	return string(e)
}

func (e baseRvpackError) RootCause() PackError {
	return e
}

func (e baseRvpackError) WithMessage(message string) PackError {
	return customPackError{
		message:       message,
		originalError: e,
	}
}

func (e baseRvpackError) Wrap(err error) PackError {
	return customPackError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customPackError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customPackError) Error() string {
	return e.message
}

func (e customPackError) WithMessage(message string) PackError {
	return customPackError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customPackError) Wrap(err error) PackError {
	return customPackError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customPackError) Unwrap() error {
	return e.originalError
}

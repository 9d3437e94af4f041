// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try collects the small error plumbing helpers shared by the
// background workers and file handling code.
package try

import (
	"errors"
	"fmt"
	"io"
)

// PanicError wraps a value recovered from a panicking worker.
type PanicError struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.Value)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e PanicError) Unwrap() error {
	err, ok := e.Value.(error)
	if !ok {
		return nil
	}
	return err
}

// Recover must be deferred directly. Any recovered panic is joined
// into the error referenced by err.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}

	perr := PanicError{
		Value: r,
	}
	if *err == nil {
		*err = perr
		return
	}
	*err = errors.Join(*err, perr)
}

// CloseError is returned when closing a resource fails.
type CloseError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e CloseError) Error() string {
	return fmt.Sprintf("failed to close: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CloseError) Unwrap() error {
	return e.Cause
}

// Close closes c and joins any failure into the error referenced by err.
// A nil c is ignored.
func Close(err *error, c io.Closer) {
	if c == nil {
		return
	}

	cerr := c.Close()
	if cerr == nil {
		return
	}

	cerr = CloseError{Cause: cerr}
	if *err == nil {
		*err = cerr
		return
	}
	*err = errors.Join(*err, cerr)
}

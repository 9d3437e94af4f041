// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spool

import (
	"fmt"
	"strings"

	"github.com/z5labs/spool/upload"
)

// ConfigReadError
type ConfigReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config source(s): %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// ConfigUnmarshalError
type ConfigUnmarshalError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal config source(s) into configuration: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// UnknownPresetError is returned for a performance preset name which
// is not one of [PresetNames].
type UnknownPresetError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown performance preset %q, expected one of: %s", e.Name, strings.Join(PresetNames(), ", "))
}

// StorageSetupError is returned when the storage of an exporter can not
// be prepared, e.g. because its directory can not be created.
type StorageSetupError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e StorageSetupError) Error() string {
	return fmt.Sprintf("failed to set up storage: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e StorageSetupError) Unwrap() error {
	return e.Cause
}

// UploadSetupError is returned when the uploader of an exporter can not
// be configured, e.g. because the intake url is invalid.
type UploadSetupError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e UploadSetupError) Error() string {
	return fmt.Sprintf("failed to set up upload: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e UploadSetupError) Unwrap() error {
	return e.Cause
}

// FlushError is returned when a flush stopped before storage was empty.
type FlushError struct {
	Outcome upload.Outcome
}

// Error implements the [builtin.error] interface.
func (e FlushError) Error() string {
	return fmt.Sprintf("flush stopped early: last upload cycle was %s", e.Outcome)
}

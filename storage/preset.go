// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"errors"
	"time"
)

// Preset bundles the timing and size thresholds which control how
// records are written, rotated, retained and uploaded.
type Preset struct {
	// SynchronousWrite makes producers block until their record is on disk.
	SynchronousWrite bool `config:"synchronousWrite"`

	// MaxFileSize is the size in bytes after which the writable file is rotated.
	MaxFileSize int64 `config:"maxFileSize"`

	// MaxDirectorySize is the disk quota shared by every batch file.
	MaxDirectorySize int64 `config:"maxDirectorySize"`

	// MaxFileAgeForWrite is the write window of a batch file.
	MaxFileAgeForWrite time.Duration `config:"maxFileAgeForWrite"`

	// MaxFileAgeForRead is the retention: older files are deleted
	// whether or not they were uploaded.
	MaxFileAgeForRead time.Duration `config:"maxFileAgeForRead"`

	MaxRecordsInFile int   `config:"maxRecordsInFile"`
	MaxRecordSize    int64 `config:"maxRecordSize"`

	InitialUploadDelay    time.Duration `config:"initialUploadDelay"`
	DefaultUploadDelay    time.Duration `config:"defaultUploadDelay"`
	MinUploadDelay        time.Duration `config:"minUploadDelay"`
	MaxUploadDelay        time.Duration `config:"maxUploadDelay"`
	UploadDelayChangeRate float64       `config:"uploadDelayChangeRate"`
}

// LowRuntimeImpact favours batching and low overhead over latency.
var LowRuntimeImpact = Preset{
	SynchronousWrite:      false,
	MaxFileSize:           4 << 20,
	MaxDirectorySize:      512 << 20,
	MaxFileAgeForWrite:    4750 * time.Millisecond,
	MaxFileAgeForRead:     18 * time.Hour,
	MaxRecordsInFile:      500,
	MaxRecordSize:         256 << 10,
	InitialUploadDelay:    5 * time.Second,
	DefaultUploadDelay:    5 * time.Second,
	MinUploadDelay:        1 * time.Second,
	MaxUploadDelay:        20 * time.Second,
	UploadDelayChangeRate: 0.1,
}

// InstantDataDelivery favours getting records off the device quickly.
var InstantDataDelivery = Preset{
	SynchronousWrite:      true,
	MaxFileSize:           4 << 20,
	MaxDirectorySize:      512 << 20,
	MaxFileAgeForWrite:    2750 * time.Millisecond,
	MaxFileAgeForRead:     18 * time.Hour,
	MaxRecordsInFile:      500,
	MaxRecordSize:         256 << 10,
	InitialUploadDelay:    500 * time.Millisecond,
	DefaultUploadDelay:    3 * time.Second,
	MinUploadDelay:        1 * time.Second,
	MaxUploadDelay:        5 * time.Second,
	UploadDelayChangeRate: 0.5,
}

var (
	errNonPositiveFileSize     = errors.New("max file size must be positive")
	errQuotaBelowFileSize      = errors.New("max directory size must be at least max file size")
	errRecordLargerThanFile    = errors.New("max record size must not exceed max file size")
	errNonPositiveWriteWindow  = errors.New("max file age for write must be positive")
	errRetentionBelowWindow    = errors.New("max file age for read must exceed max file age for write")
	errNonPositiveRecordsLimit = errors.New("max records in file must be positive")
)

// InvalidPresetError is returned by Validate.
type InvalidPresetError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidPresetError) Error() string {
	return "invalid performance preset: " + e.Cause.Error()
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidPresetError) Unwrap() error {
	return e.Cause
}

// Validate checks the storage related thresholds are consistent.
func (p Preset) Validate() error {
	var err error
	switch {
	case p.MaxFileSize <= 0:
		err = errNonPositiveFileSize
	case p.MaxDirectorySize < p.MaxFileSize:
		err = errQuotaBelowFileSize
	case p.MaxRecordSize > p.MaxFileSize:
		err = errRecordLargerThanFile
	case p.MaxFileAgeForWrite <= 0:
		err = errNonPositiveWriteWindow
	case p.MaxFileAgeForRead <= p.MaxFileAgeForWrite:
		err = errRetentionBelowWindow
	case p.MaxRecordsInFile <= 0:
		err = errNonPositiveRecordsLimit
	}
	if err != nil {
		return InvalidPresetError{Cause: err}
	}
	return nil
}

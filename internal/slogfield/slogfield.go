// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield provides the slog.Attr constructors used for the
// spool's structured logs so attribute keys stay consistent.
package slogfield

import (
	"log/slog"
	"time"
)

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Int64 returns an slog.Attr for a int64.
func Int64(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// Uint32 returns an slog.Attr for a uint32.
func Uint32(key string, n uint32) slog.Attr {
	return slog.Uint64(key, uint64(n))
}

// Feature names the telemetry signal a log line belongs to.
func Feature(name string) slog.Attr {
	return slog.String("feature", name)
}

// File names the batch file a log line is about.
func File(name string) slog.Attr {
	return slog.String("batch_file", name)
}

// StatusCode records an HTTP response status code.
func StatusCode(code int) slog.Attr {
	return slog.Int("http_status_code", code)
}

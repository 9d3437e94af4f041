// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package record defines the unit of telemetry written to disk and
// uploaded by the spool, along with its derivation from span events.
package record

import (
	"maps"
	"time"
)

// Record is one exported log entry. Records are values; the attribute
// map is copied on construction and must not be mutated afterwards.
type Record struct {
	Date        time.Time         `json:"date"`
	Status      Level             `json:"status"`
	Message     string            `json:"message"`
	Service     string            `json:"service,omitempty"`
	Environment string            `json:"env,omitempty"`
	LoggerName  string            `json:"logger.name,omitempty"`
	Version     string            `json:"version,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
	SpanID      string            `json:"span_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Option customizes a Record built with New.
type Option func(*Record)

// Attributes sets the string attributes of a Record.
func Attributes(attrs map[string]string) Option {
	return func(r *Record) {
		r.Attributes = maps.Clone(attrs)
	}
}

// Correlation sets the trace and span ids of a Record.
func Correlation(traceID, spanID string) Option {
	return func(r *Record) {
		r.TraceID = traceID
		r.SpanID = spanID
	}
}

// Origin sets the service, environment, logger and version fields.
func Origin(o Source) Option {
	return func(r *Record) {
		r.Service = o.Service
		r.Environment = o.Environment
		r.LoggerName = o.LoggerName
		r.Version = o.Version
	}
}

// New returns a Record. The date is normalized to UTC.
func New(date time.Time, lvl Level, msg string, opts ...Option) Record {
	r := Record{
		Date:    date.UTC(),
		Status:  lvl,
		Message: msg,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

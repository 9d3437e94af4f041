// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"log/slog"
	"time"

	"github.com/z5labs/spool/internal/noop"
	"github.com/z5labs/spool/internal/otelslog"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// Clock provides the current time. It exists so tests can control
// file ages.
type Clock interface {
	Now() time.Time
}

// ClockFunc is a functional implementation of the Clock interface.
type ClockFunc func() time.Time

// Now implements the Clock interface.
func (f ClockFunc) Now() time.Time {
	return f()
}

type options struct {
	feature    string
	clock      Clock
	logHandler slog.Handler
	meter      metric.Meter
	queueSize  int
}

// Option configures the Orchestrator, Writer and Reader.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		feature:    "logs",
		clock:      ClockFunc(time.Now),
		logHandler: noop.LogHandler{},
		meter:      metricnoop.NewMeterProvider().Meter(""),
		queueSize:  1024,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) logger(component string) *slog.Logger {
	return otelslog.New(o.logHandler).With(
		slog.String("feature", o.feature),
		slog.String("component", component),
	)
}

// Feature names the telemetry signal stored in the directory. It is
// attached to logs and metrics.
func Feature(name string) Option {
	return func(o *options) {
		o.feature = name
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// LogHandler sets the handler used for diagnostics.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Meter sets the meter diagnostic counters are created from.
func Meter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// QueueSize bounds the number of records waiting for the asynchronous
// writer. Write never blocks the producer: a record written while the
// queue is full is dropped and counted on spool.records.dropped with
// reason queue_full. Presets with SynchronousWrite bypass the queue.
func QueueSize(n int) Option {
	return func(o *options) {
		if n <= 0 {
			return
		}
		o.queueSize = n
	}
}

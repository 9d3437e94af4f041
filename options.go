// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spool

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/spool/internal/noop"
	"github.com/z5labs/spool/storage"
	"github.com/z5labs/spool/upload"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

type options struct {
	logHandler     slog.Handler
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	transport      http.RoundTripper
	clock          storage.Clock
	condition      upload.Condition
}

// Option configures a [LogsExporter].
type Option func(*options)

// LogHandler receives the exporter's own diagnostic logs. By default
// they are discarded.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// MeterProvider receives the exporter's diagnostic counters. The
// default is the global provider.
func MeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// TracerProvider traces upload cycles and requests. The default is a
// no-op provider. Passing the provider this exporter is registered
// with makes it export spans about its own uploads.
func TracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// Transport is the base [http.RoundTripper] requests are sent with.
func Transport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// Clock
func Clock(c storage.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// UploadCondition gates every upload attempt, e.g. on network
// reachability. It is combined with the state of the circuit breaker.
func UploadCondition(c upload.Condition) Option {
	return func(o *options) {
		o.condition = c
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logHandler:     noop.LogHandler{},
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
		transport:      http.DefaultTransport,
		clock:          storage.ClockFunc(time.Now),
		condition:      upload.Always,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

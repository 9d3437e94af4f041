// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package record

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Source describes where records come from. It is attached to every
// record derived from a span event.
type Source struct {
	Service     string
	Environment string
	LoggerName  string
	Version     string
}

// Well known span event attribute keys.
const (
	LevelKey   = "level"
	StatusKey  = "status"
	MessageKey = "message"
	SpanKey    = "span.name"
)

// FromSpanEvent derives a Record from one event of span.
//
// The level comes from the "level" or "status" attribute and defaults to
// Info, except for exception events which are always Error. The message
// is the "message" attribute, falling back to the event name. Every other
// attribute is kept as a string.
func FromSpanEvent(ev sdktrace.Event, span sdktrace.ReadOnlySpan, src Source) Record {
	lvl := Info
	msg := ev.Name
	attrs := make(map[string]string, len(ev.Attributes)+1)

	for _, kv := range ev.Attributes {
		k := string(kv.Key)
		v := kv.Value.Emit()
		switch k {
		case LevelKey, StatusKey:
			if parsed, err := ParseLevel(v); err == nil {
				lvl = parsed
				continue
			}
		case MessageKey:
			msg = v
			continue
		}
		attrs[k] = v
	}
	if ev.Name == semconv.ExceptionEventName {
		lvl = Error
	}
	attrs[SpanKey] = span.Name()

	sc := span.SpanContext()
	opts := []Option{
		Origin(src),
		Attributes(attrs),
	}
	if sc.IsValid() {
		opts = append(opts, Correlation(sc.TraceID().String(), sc.SpanID().String()))
	}
	return New(ev.Time, lvl, msg, opts...)
}

// FromSpan derives one Record per event recorded on span.
func FromSpan(span sdktrace.ReadOnlySpan, src Source) []Record {
	events := span.Events()
	records := make([]Record, 0, len(events))
	for _, ev := range events {
		records = append(records, FromSpanEvent(ev, span, src))
	}
	return records
}

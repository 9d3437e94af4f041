// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// Reasons attached to the spool.records.dropped and spool.files.deleted counters.
const (
	ReasonSerialization = "serialization"
	ReasonTooLarge      = "too_large"
	ReasonQuota         = "quota"
	ReasonIO            = "io"
	ReasonQueueFull     = "queue_full"
	ReasonClosed        = "closed"

	ReasonUploaded  = "uploaded"
	ReasonRejected  = "rejected"
	ReasonExpired   = "expired"
	ReasonEvicted   = "evicted"
	ReasonCorrupted = "corrupted"
)

type instruments struct {
	feature attribute.KeyValue
	written metric.Int64Counter
	dropped metric.Int64Counter
	deleted metric.Int64Counter
}

func newInstruments(o *options) instruments {
	inst := instruments{
		feature: attribute.String("feature", o.feature),
	}

	var err error
	inst.written, err = o.meter.Int64Counter(
		"spool.records.written",
		metric.WithDescription("Records appended to a batch file."),
	)
	if err != nil {
		inst.written, _ = metricnoop.Meter{}.Int64Counter("")
	}
	inst.dropped, err = o.meter.Int64Counter(
		"spool.records.dropped",
		metric.WithDescription("Records discarded before reaching disk."),
	)
	if err != nil {
		inst.dropped, _ = metricnoop.Meter{}.Int64Counter("")
	}
	inst.deleted, err = o.meter.Int64Counter(
		"spool.files.deleted",
		metric.WithDescription("Batch files removed from disk."),
	)
	if err != nil {
		inst.deleted, _ = metricnoop.Meter{}.Int64Counter("")
	}
	return inst
}

func (inst instruments) recordWritten() {
	inst.written.Add(context.Background(), 1, metric.WithAttributes(inst.feature))
}

func (inst instruments) recordDropped(reason string) {
	inst.dropped.Add(
		context.Background(),
		1,
		metric.WithAttributes(inst.feature, attribute.String("reason", reason)),
	)
}

func (inst instruments) fileDeleted(reason string) {
	inst.deleted.Add(
		context.Background(),
		1,
		metric.WithAttributes(inst.feature, attribute.String("reason", reason)),
	)
}

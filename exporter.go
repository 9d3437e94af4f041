// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spool

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/z5labs/spool/internal/otelslog"
	"github.com/z5labs/spool/internal/slogfield"
	"github.com/z5labs/spool/record"
	"github.com/z5labs/spool/storage"
	"github.com/z5labs/spool/upload"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

// LogsDirectory is where log batches are kept, relative to the storage
// directory.
var LogsDirectory = filepath.Join("logs", "v1")

// LogsExporter turns span events into log records and delivers them to
// the logs intake through a disk buffer. It implements
// [sdktrace.SpanExporter].
type LogsExporter struct {
	cfg    Configuration
	origin record.Source
	log    *slog.Logger

	orch   *storage.Orchestrator
	writer *storage.Writer[record.Record]
	upload *upload.Feature

	stopOnce sync.Once
	stopped  chan struct{}
}

var _ sdktrace.SpanExporter = (*LogsExporter)(nil)

// NewLogsExporter prepares the storage directory and the uploader. It
// fails if the directory can not be created or the intake url is
// invalid. Uploads only happen while [LogsExporter.Run] is running.
func NewLogsExporter(cfg Configuration, opts ...Option) (*LogsExporter, error) {
	o := newOptions(opts)
	preset := cfg.Performance.Preset

	storageOpts := []storage.Option{
		storage.Feature("logs"),
		storage.WithClock(o.clock),
		storage.LogHandler(o.logHandler),
		storage.Meter(o.meterProvider.Meter("github.com/z5labs/spool/storage")),
	}
	orch, err := storage.NewOrchestrator(filepath.Join(cfg.Storage.Directory, LogsDirectory), preset, storageOpts...)
	if err != nil {
		return nil, StorageSetupError{Cause: err}
	}

	headers := []upload.Header{
		upload.JSON(),
		upload.UserAgent(cfg.ApplicationName, cfg.Version, cfg.Device),
		upload.APIKey(cfg.APIKey),
		upload.EVPOrigin(cfg.Source),
		upload.EVPOriginVersion(cfg.Version),
		upload.RequestID(),
	}
	if cfg.PayloadCompression {
		headers = append(headers, upload.ContentEncoding(upload.Deflate))
	}
	builder, err := upload.NewRequestBuilder(
		cfg.Endpoint.LogsURL,
		url.Values{"ddsource": {cfg.Source}},
		headers,
		upload.MaxPayloadSize(cfg.Upload.MaxPayloadSize),
		upload.BuilderLogHandler(o.logHandler),
	)
	if err != nil {
		return nil, UploadSetupError{Cause: err}
	}

	client := upload.NewClient(
		upload.Name("logs"),
		upload.RoundTripper(o.transport),
		upload.ClientLogHandler(o.logHandler),
		upload.ClientTracerProvider(o.tracerProvider),
		upload.ClientMeterProvider(o.meterProvider),
		upload.RetryMax(cfg.Upload.RetryMax),
		upload.TripAfter(cfg.Upload.Circuit.TripAfter),
		upload.OpenStateTimeout(cfg.Upload.Circuit.OpenTimeout),
	)

	feature := upload.NewFeature(
		"logs",
		storage.NewReader(storage.JSONArray, orch, storageOpts...),
		orch,
		builder,
		client,
		upload.And(o.condition, upload.CircuitClosed(client)),
		upload.NewDelay(preset),
		upload.RequestTimeout(cfg.Upload.Timeout),
		upload.FeatureLogHandler(o.logHandler),
		upload.FeatureTracerProvider(o.tracerProvider),
		upload.FeatureMeterProvider(o.meterProvider),
	)

	return &LogsExporter{
		cfg: cfg,
		origin: record.Source{
			Service:     cfg.Service,
			Environment: cfg.Environment,
			LoggerName:  cfg.LoggerName,
			Version:     cfg.Version,
		},
		log:     otelslog.New(o.logHandler).With(slogfield.Feature("logs")),
		orch:    orch,
		writer:  storage.NewWriter[record.Record](storage.JSONArray, orch, storageOpts...),
		upload:  feature,
		stopped: make(chan struct{}),
	}, nil
}

// Dir returns the directory log batches are kept in.
func (e *LogsExporter) Dir() string {
	return e.orch.Dir()
}

// ExportSpans implements the [sdktrace.SpanExporter] interface. Every
// span event becomes one log record. It never returns an error; records
// which can not be stored are dropped and counted.
func (e *LogsExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		e.ExportRecords(ctx, record.FromSpan(span, e.origin)...)
	}
	return nil
}

// ExportRecords stores records for upload. Whether it waits for them to
// reach disk depends on the performance preset. Without SynchronousWrite
// records are queued and a record arriving while the queue is full is
// dropped rather than blocking the caller, counted on
// spool.records.dropped with reason queue_full.
func (e *LogsExporter) ExportRecords(ctx context.Context, records ...record.Record) {
	for _, r := range records {
		e.writer.Write(ctx, r)
	}
}

// Wake starts an upload cycle now instead of waiting for the current
// upload delay, e.g. after connectivity was regained.
func (e *LogsExporter) Wake() {
	e.upload.Wake()
}

// Run uploads batches until ctx is cancelled or the exporter is shut
// down. It also sweeps the storage directory once per write window so
// expired batches are removed even while uploads are not possible.
func (e *LogsExporter) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-e.stopped:
			cancel()
		}
		return nil
	})
	g.Go(func() error {
		return e.upload.Run(gctx)
	})
	g.Go(func() error {
		return e.sweep(gctx)
	})
	return g.Wait()
}

func (e *LogsExporter) sweep(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Performance.MaxFileAgeForWrite)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		n := e.orch.Sweep()
		if n > 0 {
			e.log.InfoContext(ctx, "swept batch files", slogfield.Int("deleted", n))
		}
	}
}

// Shutdown implements the [sdktrace.SpanExporter] interface. It stops
// [LogsExporter.Run] from starting new upload cycles and waits until
// pending records are on disk. Records exported afterwards are dropped.
func (e *LogsExporter) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() {
		close(e.stopped)
	})
	return e.writer.Close(ctx)
}

// Flush uploads every stored batch back to back, ignoring the upload
// delay. It returns the number of delivered batches and a [FlushError]
// if a batch had to be left behind.
func (e *LogsExporter) Flush(ctx context.Context) (int, error) {
	delivered, outcome := e.upload.Drain(ctx)
	if outcome != upload.Idle {
		return delivered, FlushError{Outcome: outcome}
	}
	return delivered, nil
}

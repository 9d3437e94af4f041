// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/spool/internal/noop"
	"github.com/z5labs/spool/internal/otelslog"
	"github.com/z5labs/spool/internal/slogfield"
	"github.com/z5labs/spool/internal/try"
	"github.com/z5labs/spool/storage"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Source hands out the next batch to upload. A nil batch and nil error
// means there is nothing to upload.
type Source interface {
	ReadNextBatch(context.Context) (*storage.Batch, error)
}

// Marker records the fate of an uploaded batch file.
type Marker interface {
	MarkUploadSucceeded(*storage.File)
	MarkUploadFailed(*storage.File)
	MarkUploadRejected(*storage.File)
}

// Doer sends a single request.
type Doer interface {
	Do(*retryablehttp.Request) (*http.Response, error)
}

type featureOptions struct {
	timeout        time.Duration
	logHandler     slog.Handler
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// FeatureOption configures a [Feature].
type FeatureOption func(*featureOptions)

// RequestTimeout bounds every request of an upload. A request which
// times out is a [RetryableFailure]. The default is 30 seconds.
func RequestTimeout(d time.Duration) FeatureOption {
	return func(fo *featureOptions) {
		if d <= 0 {
			return
		}
		fo.timeout = d
	}
}

// FeatureLogHandler
func FeatureLogHandler(h slog.Handler) FeatureOption {
	return func(fo *featureOptions) {
		fo.logHandler = h
	}
}

// FeatureTracerProvider
func FeatureTracerProvider(tp trace.TracerProvider) FeatureOption {
	return func(fo *featureOptions) {
		fo.tracerProvider = tp
	}
}

// FeatureMeterProvider
func FeatureMeterProvider(mp metric.MeterProvider) FeatureOption {
	return func(fo *featureOptions) {
		fo.meterProvider = mp
	}
}

// Feature uploads the batches of one telemetry signal, one file per
// cycle.
type Feature struct {
	name    string
	source  Source
	marker  Marker
	builder *RequestBuilder
	client  Doer
	cond    Condition
	delay   *Delay
	timeout time.Duration

	log     *slog.Logger
	tracer  trace.Tracer
	uploads metric.Int64Counter

	wake chan struct{}
}

// NewFeature
func NewFeature(name string, source Source, marker Marker, builder *RequestBuilder, client Doer, cond Condition, delay *Delay, opts ...FeatureOption) *Feature {
	fo := &featureOptions{
		timeout:        30 * time.Second,
		logHandler:     noop.LogHandler{},
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(fo)
	}

	uploads, err := fo.meterProvider.Meter("github.com/z5labs/spool/upload").Int64Counter(
		"spool.uploads",
		metric.WithDescription("Upload cycles by outcome."),
	)
	if err != nil {
		uploads, _ = metricnoop.Meter{}.Int64Counter("")
	}

	return &Feature{
		name:    name,
		source:  source,
		marker:  marker,
		builder: builder,
		client:  client,
		cond:    cond,
		delay:   delay,
		timeout: fo.timeout,
		log:     otelslog.New(fo.logHandler).With(slogfield.Feature(name)),
		tracer:  fo.tracerProvider.Tracer("github.com/z5labs/spool/upload"),
		uploads: uploads,
		wake:    make(chan struct{}, 1),
	}
}

// Wake starts the next cycle without waiting for the current delay.
func (f *Feature) Wake() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Run performs upload cycles until ctx is cancelled. A cancelled ctx
// does not abort a request which is already in flight.
func (f *Feature) Run(ctx context.Context) error {
	timer := time.NewTimer(f.delay.Current())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-f.wake:
		}

		f.cycleSafely(ctx)
		timer.Reset(f.delay.Current())
	}
}

func (f *Feature) cycleSafely(ctx context.Context) {
	var err error
	defer func() {
		if err == nil {
			return
		}
		f.log.ErrorContext(ctx, "recovered from panic during upload cycle", slogfield.Error(err))
	}()
	defer try.Recover(&err)

	f.Cycle(ctx)
}

// Cycle uploads at most one batch file.
func (f *Feature) Cycle(ctx context.Context) Outcome {
	spanCtx, span := f.tracer.Start(ctx, "Feature.Cycle", trace.WithAttributes(
		attribute.String("feature", f.name),
	))
	defer span.End()

	outcome, resp := f.cycle(spanCtx)
	f.delay.Observe(outcome, resp)
	f.uploads.Add(spanCtx, 1, metric.WithAttributes(
		attribute.String("feature", f.name),
		attribute.String("outcome", outcome.String()),
	))

	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if outcome == RetryableFailure || outcome == PermanentFailure {
		span.SetStatus(codes.Error, outcome.String())
	}
	return outcome
}

func (f *Feature) cycle(ctx context.Context) (Outcome, *http.Response) {
	if !f.cond.Ready(ctx) {
		f.log.DebugContext(ctx, "upload condition not met, skipping cycle")
		return Skipped, nil
	}

	batch, err := f.source.ReadNextBatch(ctx)
	var cerr storage.CorruptedFileError
	if errors.As(err, &cerr) {
		f.log.WarnContext(ctx, "discarded corrupted batch", slogfield.File(cerr.File), slogfield.Error(cerr.Cause))
		return PermanentFailure, nil
	}
	if err != nil {
		f.log.ErrorContext(ctx, "failed to read batch", slogfield.Error(err))
		return RetryableFailure, nil
	}
	if batch == nil {
		return Idle, nil
	}

	outcome, resp := f.upload(ctx, batch)
	switch outcome {
	case Success:
		f.marker.MarkUploadSucceeded(batch.File)
	case PermanentFailure:
		f.marker.MarkUploadRejected(batch.File)
	default:
		f.marker.MarkUploadFailed(batch.File)
	}
	return outcome, resp
}

// upload sends every part of batch in order. The first part which is
// not delivered decides the outcome of the whole file.
func (f *Feature) upload(ctx context.Context, batch *storage.Batch) (Outcome, *http.Response) {
	log := f.log.With(slogfield.File(batch.File.Name()))

	reqs, err := f.builder.Build(ctx, batch.Items)
	if err != nil {
		log.ErrorContext(ctx, "failed to build upload request", slogfield.Error(err))
		return RetryableFailure, nil
	}

	var resp *http.Response
	for i, req := range reqs {
		var outcome Outcome
		outcome, resp = f.send(ctx, req)
		if outcome == Success {
			continue
		}
		log.WarnContext(
			ctx,
			"batch upload failed",
			slogfield.String("outcome", outcome.String()),
			slogfield.Int("part", i+1),
			slogfield.Int("parts", len(reqs)),
		)
		return outcome, resp
	}

	log.InfoContext(
		ctx,
		"uploaded batch",
		slogfield.Int("records", len(batch.Items)),
		slogfield.Int("requests", len(reqs)),
	)
	return Success, resp
}

func (f *Feature) send(ctx context.Context, req *retryablehttp.Request) (Outcome, *http.Response) {
	// requests in flight finish or time out on their own during shutdown
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	resp, err := f.client.Do(req.WithContext(reqCtx))
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	outcome := Classify(resp, err)
	switch {
	case err != nil:
		f.log.WarnContext(ctx, "upload request failed", slogfield.Error(err))
	case outcome != Success:
		f.log.WarnContext(ctx, "upload rejected", slogfield.Error(StatusCodeError{Code: resp.StatusCode}))
	}
	return outcome, resp
}

// Drain runs cycles back to back until there is nothing left to upload.
// Rejected batches are deleted and draining goes on. It stops early on
// the first cycle which leaves a batch behind and returns its outcome,
// or [Idle] once storage is empty.
func (f *Feature) Drain(ctx context.Context) (int, Outcome) {
	var delivered int
	for {
		if ctx.Err() != nil {
			return delivered, Skipped
		}
		switch outcome := f.Cycle(ctx); outcome {
		case Success:
			delivered++
		case PermanentFailure:
		default:
			return delivered, outcome
		}
	}
}

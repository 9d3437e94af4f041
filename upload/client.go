// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/spool/internal/maskslog"
	"github.com/z5labs/spool/internal/noop"
	"github.com/z5labs/spool/internal/otelslog"
	"github.com/z5labs/spool/internal/slogfield"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

type circuitOptions struct {
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	tripCount   uint32
}

type retryOptions struct {
	maxRetries int
	waitMin    time.Duration
	waitMax    time.Duration
}

type clientOptions struct {
	name           string
	rt             http.RoundTripper
	logHandler     slog.Handler
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	co *circuitOptions
	ro retryOptions
}

// ClientOption configures a [Client].
type ClientOption func(*clientOptions)

func withCircuitOption(f func(*circuitOptions)) ClientOption {
	return func(o *clientOptions) {
		if o.co == nil {
			o.co = &circuitOptions{
				maxRequests: 1,
				timeout:     60 * time.Second,
				tripCount:   5,
			}
		}
		f(o.co)
	}
}

// HalfOpenRequests is the number of requests let through while the
// circuit is half open.
func HalfOpenRequests(n uint32) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.maxRequests = n
	})
}

// OpenStateTimeout is how long the circuit stays open before letting
// requests through again.
func OpenStateTimeout(d time.Duration) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.timeout = d
	})
}

// CountResetInterval clears the failure counts of a closed circuit
// periodically. Zero never clears them.
func CountResetInterval(d time.Duration) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.interval = d
	})
}

// TripAfter opens the circuit after n consecutive failed requests.
func TripAfter(n uint32) ClientOption {
	return withCircuitOption(func(co *circuitOptions) {
		co.tripCount = n
	})
}

// RetryMax is how often a request is retried within one upload attempt.
// The default is zero, leaving retries to later upload cycles.
func RetryMax(n int) ClientOption {
	return func(o *clientOptions) {
		if n < 0 {
			return
		}
		o.ro.maxRetries = n
	}
}

// RetryWait bounds the backoff between retries of a request.
func RetryWait(minWait, maxWait time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.ro.waitMin = minWait
		o.ro.waitMax = maxWait
	}
}

// Name
func Name(s string) ClientOption {
	return func(o *clientOptions) {
		o.name = s
	}
}

// RoundTripper sets the base transport. The default is [http.DefaultTransport].
func RoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.rt = rt
	}
}

// ClientLogHandler
func ClientLogHandler(h slog.Handler) ClientOption {
	return func(o *clientOptions) {
		o.logHandler = h
	}
}

// ClientTracerProvider is used to instrument outgoing requests. The
// default is a no-op provider so uploads of traces do not produce more
// traces.
func ClientTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(o *clientOptions) {
		o.tracerProvider = tp
	}
}

// ClientMeterProvider
func ClientMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *clientOptions) {
		o.meterProvider = mp
	}
}

// Client sends intake requests.
type Client struct {
	http    *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient
func NewClient(opts ...ClientOption) *Client {
	o := &clientOptions{
		name:           "upload",
		rt:             http.DefaultTransport,
		logHandler:     noop.LogHandler{},
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		ro: retryOptions{
			waitMin: 100 * time.Millisecond,
			waitMax: 5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	logger := otelslog.New(maskslog.NewHandler(
		o.logHandler,
		maskslog.Attr("api_key", maskslog.AnonymousStringAttr),
	)).With(slogfield.String("http_client", o.name))

	var rt http.RoundTripper = &logRoundTripper{
		base: o.rt,
		log:  logger,
	}

	c := &Client{}
	if o.co != nil {
		co := o.co
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        o.name,
			MaxRequests: co.maxRequests,
			Interval:    co.interval,
			Timeout:     co.timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= co.tripCount
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				switch to {
				case gobreaker.StateOpen:
					logger.Error("circuit has been opened")
				case gobreaker.StateHalfOpen:
					logger.Warn(
						"circuit is now half open and letting some requests through",
						slogfield.Uint32("max_requests_allowed_through", co.maxRequests),
					)
				case gobreaker.StateClosed:
					logger.Info("circuit has been closed")
				}
			},
		})
		rt = &circuitRoundTripper{
			base: rt,
			cb:   c.breaker,
		}
	}

	rt = otelhttp.NewTransport(
		rt,
		otelhttp.WithTracerProvider(o.tracerProvider),
		otelhttp.WithMeterProvider(o.meterProvider),
	)

	c.http = &retryablehttp.Client{
		HTTPClient: &http.Client{
			Transport: rt,
		},
		RetryWaitMin: o.ro.waitMin,
		RetryWaitMax: o.ro.waitMax,
		RetryMax:     o.ro.maxRetries,
		CheckRetry:   checkRetry,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return c
}

// Do sends req. The caller must close the response body.
func (c *Client) Do(req *retryablehttp.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// checkRetry never retries into an open circuit.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if circuitRejected(err) {
		return false, err
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func circuitRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type logRoundTripper struct {
	base http.RoundTripper
	log  *slog.Logger
}

func (rt *logRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()
	rt.log.DebugContext(
		ctx,
		"request sent",
		slogfield.String("url", req.URL.String()),
		slogfield.String("api_key", req.Header.Get(APIKeyHeader)),
		slogfield.String("request_id", req.Header.Get(RequestIDHeader)),
	)
	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		rt.log.WarnContext(
			ctx,
			"request failed",
			slogfield.String("url", req.URL.String()),
			slogfield.Error(err),
		)
		return nil, err
	}
	rt.log.DebugContext(
		ctx,
		"response received",
		slogfield.String("url", req.URL.String()),
		slogfield.StatusCode(resp.StatusCode),
		slogfield.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

// statusCodeFailure marks responses the circuit breaker counts as failures
// while still handing them back to the caller.
type statusCodeFailure struct {
	code int
}

func (e statusCodeFailure) Error() string {
	return http.StatusText(e.code)
}

type circuitRoundTripper struct {
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (interface{}, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return resp, statusCodeFailure{code: resp.StatusCode}
		}
		return resp, nil
	})

	var sf statusCodeFailure
	if errors.As(err, &sf) {
		return v.(*http.Response), nil
	}
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}

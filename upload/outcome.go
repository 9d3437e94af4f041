// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// Outcome is the result of one upload cycle.
type Outcome int

const (
	// Skipped means no request was sent because the upload condition
	// was not ready or the circuit breaker refused the request.
	Skipped Outcome = iota

	// Idle means there was nothing to upload.
	Idle

	// Success means the intake accepted the batch.
	Success

	// RetryableFailure means the batch should be sent again later.
	RetryableFailure

	// PermanentFailure means the intake will never accept the batch.
	PermanentFailure
)

// String implements the [fmt.Stringer] interface.
func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Idle:
		return "idle"
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable_failure"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// StatusCodeError describes a response which was not a success.
type StatusCodeError struct {
	Code int
}

// Error implements the [builtin.error] interface.
func (e StatusCodeError) Error() string {
	return fmt.Sprintf("intake responded with status code %d", e.Code)
}

// Classify maps the result of sending one request to an Outcome.
// Timeouts, connection errors, 429 and every 5xx response are
// retryable. Other 4xx responses and errors that will happen again,
// like an unsupported protocol scheme, are permanent.
func Classify(resp *http.Response, err error) Outcome {
	if circuitRejected(err) {
		return Skipped
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return RetryableFailure
	}
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Success
	}
	// DefaultRetryPolicy gives up on 501 but a server side failure never
	// condemns the batch itself.
	if err == nil && resp.StatusCode >= 500 {
		return RetryableFailure
	}

	retry, _ := retryablehttp.DefaultRetryPolicy(context.Background(), resp, err)
	if retry {
		return RetryableFailure
	}
	return PermanentFailure
}

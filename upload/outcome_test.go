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
	"net/url"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		Name   string
		Status int
		Err    error
		Want   Outcome
	}{
		{Name: "will succeed on 200", Status: http.StatusOK, Want: Success},
		{Name: "will succeed on 202", Status: http.StatusAccepted, Want: Success},
		{Name: "will retry on 429", Status: http.StatusTooManyRequests, Want: RetryableFailure},
		{Name: "will retry on 500", Status: http.StatusInternalServerError, Want: RetryableFailure},
		{Name: "will retry on 503", Status: http.StatusServiceUnavailable, Want: RetryableFailure},
		{Name: "will give up on 400", Status: http.StatusBadRequest, Want: PermanentFailure},
		{Name: "will give up on 403", Status: http.StatusForbidden, Want: PermanentFailure},
		{Name: "will give up on 413", Status: http.StatusRequestEntityTooLarge, Want: PermanentFailure},
		{Name: "will retry on 501", Status: http.StatusNotImplemented, Want: RetryableFailure},
		{Name: "will retry on 505", Status: http.StatusHTTPVersionNotSupported, Want: RetryableFailure},
		{
			Name: "will retry on a timeout",
			Err:  &url.Error{Op: "Post", URL: "https://intake", Err: context.DeadlineExceeded},
			Want: RetryableFailure,
		},
		{
			Name: "will retry on a connection error",
			Err:  &url.Error{Op: "Post", URL: "https://intake", Err: errors.New("connection refused")},
			Want: RetryableFailure,
		},
		{
			Name: "will give up on an unsupported scheme",
			Err:  &url.Error{Op: "Post", URL: "ftp://intake", Err: errors.New(`unsupported protocol scheme "ftp"`)},
			Want: PermanentFailure,
		},
		{
			Name: "will skip if the circuit is open",
			Err:  &url.Error{Op: "Post", URL: "https://intake", Err: gobreaker.ErrOpenState},
			Want: Skipped,
		},
		{
			Name: "will skip if the half open circuit is busy",
			Err:  fmt.Errorf("wrapped: %w", gobreaker.ErrTooManyRequests),
			Want: Skipped,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			var resp *http.Response
			if testCase.Err == nil {
				resp = &http.Response{StatusCode: testCase.Status}
			}

			assert.Equal(t, testCase.Want, Classify(resp, testCase.Err))
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "retryable_failure", RetryableFailure.String())
	assert.Equal(t, "Outcome(42)", Outcome(42).String())
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelslog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

type otelLine struct {
	Otel *struct {
		TraceID string `json:"trace_id"`
		SpanID  string `json:"span_id"`
	} `json:"otel"`
}

func TestHandler_Handle(t *testing.T) {
	t.Run("will not add trace ids", func(t *testing.T) {
		t.Run("if the context has no valid span context", func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(slog.NewJSONHandler(&buf, nil))
			logger.InfoContext(context.Background(), "cycle started")

			var line otelLine
			err := json.Unmarshal(buf.Bytes(), &line)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Nil(t, line.Otel) {
				return
			}
		})
	})

	t.Run("will add trace ids", func(t *testing.T) {
		t.Run("if the context carries a valid span context", func(t *testing.T) {
			spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
				SpanID:  trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
			})
			ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

			var buf bytes.Buffer
			logger := New(slog.NewJSONHandler(&buf, nil))
			logger.InfoContext(ctx, "cycle started")

			var line otelLine
			err := json.Unmarshal(buf.Bytes(), &line)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.NotNil(t, line.Otel) {
				return
			}
			if !assert.Equal(t, spanCtx.TraceID().String(), line.Otel.TraceID) {
				return
			}
			if !assert.Equal(t, spanCtx.SpanID().String(), line.Otel.SpanID) {
				return
			}
		})
	})
}

func TestNewHandler(t *testing.T) {
	t.Run("will not double wrap", func(t *testing.T) {
		t.Run("if given a *Handler", func(t *testing.T) {
			h := NewHandler(slog.NewJSONHandler(&bytes.Buffer{}, nil))
			if !assert.Same(t, h, NewHandler(h)) {
				return
			}
		})
	})
}

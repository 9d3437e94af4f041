// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog provides an slog.Handler which masks sensitive
// attributes, such as API keys, before they reach the wrapped handler.
package maskslog

import (
	"context"
	"log/slog"
)

type options struct {
	attrTransformers map[string]func(slog.Attr) slog.Attr
}

// Option helps configure the Handler.
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(opts *options) {
	f(opts)
}

// Attr registers a function for masking a slog.Attr given its key.
func Attr(key string, f func(slog.Attr) slog.Attr) Option {
	return optionFunc(func(o *options) {
		o.attrTransformers[key] = f
	})
}

// AnonymousStringAttr converts any slog.Attr into the anonymized
// string, "****", regardless of the original value type.
func AnonymousStringAttr(a slog.Attr) slog.Attr {
	return slog.String(a.Key, "****")
}

// Handler is an slog.Handler.
type Handler struct {
	slog slog.Handler

	attrTransformers map[string]func(slog.Attr) slog.Attr
}

// NewHandler returns a new Handler.
func NewHandler(h slog.Handler, opts ...Option) *Handler {
	o := &options{
		attrTransformers: make(map[string]func(slog.Attr) slog.Attr),
	}
	for _, opt := range opts {
		opt.applyOption(o)
	}
	return &Handler{
		slog:             h,
		attrTransformers: o.attrTransformers,
	}
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.attrTransformers) == 0 {
		return h.slog.Handle(ctx, record)
	}

	nr := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(h.mask(a))
		return true
	})
	return h.slog.Handle(ctx, nr)
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	f, ok := h.attrTransformers[a.Key]
	if !ok {
		return a
	}
	return f(a)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nr := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		nr[i] = h.mask(a)
	}
	return &Handler{
		slog:             h.slog.WithAttrs(nr),
		attrTransformers: h.attrTransformers,
	}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		slog:             h.slog.WithGroup(name),
		attrTransformers: h.attrTransformers,
	}
}

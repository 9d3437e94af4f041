// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/z5labs/spool/internal/noop"
	"github.com/z5labs/spool/internal/otelslog"
	"github.com/z5labs/spool/internal/slogfield"
	"github.com/z5labs/spool/storage"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/zlib"
)

// InvalidEndpointError is returned for intake URLs requests can not be
// sent to.
type InvalidEndpointError struct {
	URL   string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidEndpointError) Error() string {
	return fmt.Sprintf("invalid intake url %q: %s", e.URL, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidEndpointError) Unwrap() error {
	return e.Cause
}

// UnsupportedEncodingError is returned when a [ContentEncoding] header
// names an encoding the builder can not produce.
type UnsupportedEncodingError struct {
	Encoding string
}

// Error implements the [builtin.error] interface.
func (e UnsupportedEncodingError) Error() string {
	return "unsupported content encoding: " + e.Encoding
}

type builderOptions struct {
	format         storage.DataFormat
	maxPayloadSize int
	logHandler     slog.Handler
}

// BuilderOption configures a [RequestBuilder].
type BuilderOption func(*builderOptions)

// Format sets the framing used for request bodies. The default is
// [storage.JSONArray].
func Format(f storage.DataFormat) BuilderOption {
	return func(bo *builderOptions) {
		bo.format = f
	}
}

// MaxPayloadSize splits a batch into several requests whose framed,
// uncompressed bodies stay within n bytes. A single item larger than n
// is still sent on its own. Zero disables splitting.
func MaxPayloadSize(n int) BuilderOption {
	return func(bo *builderOptions) {
		if n < 0 {
			return
		}
		bo.maxPayloadSize = n
	}
}

// BuilderLogHandler
func BuilderLogHandler(h slog.Handler) BuilderOption {
	return func(bo *builderOptions) {
		bo.logHandler = h
	}
}

// RequestBuilder turns batch items into intake requests from a fixed
// url and header set.
type RequestBuilder struct {
	url            string
	headers        []Header
	encoding       Encoding
	format         storage.DataFormat
	maxPayloadSize int
	compress       func([]byte) ([]byte, error)
	log            *slog.Logger
}

// NewRequestBuilder validates endpoint and merges query into it.
func NewRequestBuilder(endpoint string, query url.Values, headers []Header, opts ...BuilderOption) (*RequestBuilder, error) {
	bo := &builderOptions{
		format:     storage.JSONArray,
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(bo)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, InvalidEndpointError{URL: endpoint, Cause: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, InvalidEndpointError{URL: endpoint, Cause: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, InvalidEndpointError{URL: endpoint, Cause: fmt.Errorf("missing host")}
	}

	q := u.Query()
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()

	rb := &RequestBuilder{
		url:            u.String(),
		format:         bo.format,
		maxPayloadSize: bo.maxPayloadSize,
		compress:       deflate,
		log:            otelslog.New(bo.logHandler),
	}
	for _, h := range headers {
		if h.Key != ContentEncodingHeader {
			rb.headers = append(rb.headers, h)
			continue
		}
		if Encoding(h.Value) != Deflate {
			return nil, UnsupportedEncodingError{Encoding: h.Value}
		}
		rb.encoding = Deflate
	}
	return rb, nil
}

// URL returns the endpoint requests are sent to, query included.
func (rb *RequestBuilder) URL() string {
	return rb.url
}

// Build frames items into one or more POST requests. The bodies are
// rewindable so they can be sent again by the client.
func (rb *RequestBuilder) Build(ctx context.Context, items [][]byte) ([]*retryablehttp.Request, error) {
	parts := rb.split(items)
	reqs := make([]*retryablehttp.Request, 0, len(parts))
	for _, part := range parts {
		req, err := rb.build(ctx, part)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (rb *RequestBuilder) build(ctx context.Context, items [][]byte) (*retryablehttp.Request, error) {
	body := rb.format.Frame(items)

	var encoding Encoding
	if rb.encoding == Deflate {
		compressed, err := rb.compress(body)
		if err == nil {
			body = compressed
			encoding = Deflate
		} else {
			rb.log.WarnContext(ctx, "sending payload uncompressed", slogfield.Error(err))
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, rb.url, body)
	if err != nil {
		return nil, err
	}
	for _, h := range rb.headers {
		req.Header.Set(h.Key, h.value())
	}
	if encoding != "" {
		req.Header.Set(ContentEncodingHeader, string(encoding))
	}
	return req, nil
}

func (rb *RequestBuilder) split(items [][]byte) [][][]byte {
	if rb.maxPayloadSize <= 0 || rb.format.FramedSize(items) <= rb.maxPayloadSize {
		return [][][]byte{items}
	}

	var (
		parts [][][]byte
		part  [][]byte
		size  int
	)
	framing := len(rb.format.Prefix) + len(rb.format.Suffix)
	for _, item := range items {
		n := len(item)
		if len(part) > 0 {
			n += len(rb.format.Separator)
		}
		if len(part) > 0 && framing+size+n > rb.maxPayloadSize {
			parts = append(parts, part)
			part, size, n = nil, 0, len(item)
		}
		part = append(part, item)
		size += n
	}
	return append(parts, part)
}

func deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(b)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

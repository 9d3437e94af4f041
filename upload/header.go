// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"fmt"

	"github.com/google/uuid"
)

// Header names understood by the intake.
const (
	ContentTypeHeader      = "Content-Type"
	ContentEncodingHeader  = "Content-Encoding"
	UserAgentHeader        = "User-Agent"
	APIKeyHeader           = "DD-API-KEY"
	EVPOriginHeader        = "DD-EVP-ORIGIN"
	EVPOriginVersionHeader = "DD-EVP-ORIGIN-VERSION"
	RequestIDHeader        = "DD-REQUEST-ID"
)

// Encoding is a Content-Encoding the builder can apply to payloads.
type Encoding string

// Deflate compresses payloads with zlib.
const Deflate Encoding = "deflate"

// Header is one entry of the fixed header set of a [RequestBuilder].
// Most headers have a static value. Some, like [RequestID], produce a
// new value for every request.
type Header struct {
	Key   string
	Value string

	generate func() string
}

func (h Header) value() string {
	if h.generate != nil {
		return h.generate()
	}
	return h.Value
}

// ContentType
func ContentType(contentType string) Header {
	return Header{Key: ContentTypeHeader, Value: contentType}
}

// JSON is the content type of every batch payload.
func JSON() Header {
	return ContentType("application/json")
}

// UserAgent identifies the application as "<app>/<version> (<device>)".
func UserAgent(app, version, device string) Header {
	return Header{
		Key:   UserAgentHeader,
		Value: fmt.Sprintf("%s/%s (%s)", app, version, device),
	}
}

// APIKey authenticates requests with the intake.
func APIKey(key string) Header {
	return Header{Key: APIKeyHeader, Value: key}
}

// EVPOrigin names the source of the data.
func EVPOrigin(source string) Header {
	return Header{Key: EVPOriginHeader, Value: source}
}

// EVPOriginVersion is the version of the data source.
func EVPOriginVersion(version string) Header {
	return Header{Key: EVPOriginVersionHeader, Value: version}
}

// RequestID sets a new random UUID on every request.
func RequestID() Header {
	return Header{Key: RequestIDHeader, generate: uuid.NewString}
}

// ContentEncoding makes the builder compress payloads with enc. When
// compression fails the payload is sent as is and this header is left
// out of that request.
func ContentEncoding(enc Encoding) Header {
	return Header{Key: ContentEncodingHeader, Value: string(enc)}
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import "bytes"

// DataFormat describes how records are framed inside a batch file.
type DataFormat struct {
	Prefix    []byte
	Suffix    []byte
	Separator []byte
}

// JSONArray frames records as a JSON array of objects.
var JSONArray = DataFormat{
	Prefix:    []byte("["),
	Suffix:    []byte("]"),
	Separator: []byte(","),
}

// Frame joins items into a single framed payload.
func (f DataFormat) Frame(items [][]byte) []byte {
	var buf bytes.Buffer
	buf.Grow(f.FramedSize(items))
	buf.Write(f.Prefix)
	for i, item := range items {
		if i > 0 {
			buf.Write(f.Separator)
		}
		buf.Write(item)
	}
	buf.Write(f.Suffix)
	return buf.Bytes()
}

// FramedSize returns the length of Frame(items) without building it.
func (f DataFormat) FramedSize(items [][]byte) int {
	n := len(f.Prefix) + len(f.Suffix)
	for i, item := range items {
		if i > 0 {
			n += len(f.Separator)
		}
		n += len(item)
	}
	return n
}

func (f DataFormat) complete(data []byte) []byte {
	trimmed := bytes.TrimRight(data, " \t\r\n")
	if bytes.HasSuffix(trimmed, f.Suffix) {
		return trimmed
	}
	out := make([]byte, 0, len(trimmed)+len(f.Suffix))
	out = append(out, trimmed...)
	return append(out, f.Suffix...)
}

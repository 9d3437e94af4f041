// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/z5labs/spool/internal/slogfield"

	"github.com/valyala/fastjson"
)

// CorruptedFileError is returned when a batch file cannot be decoded.
// The file has already been deleted by the time it is returned.
type CorruptedFileError struct {
	File  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e CorruptedFileError) Error() string {
	return fmt.Sprintf("corrupted batch file %s: %s", e.File, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CorruptedFileError) Unwrap() error {
	return e.Cause
}

var (
	errNotAnArray = errors.New("content is not an array")
	errEmptyBatch = errors.New("batch contains no records")
)

// Batch is the content of one claimed batch file. The file stays in the
// Uploading state until it is passed to one of the Orchestrator's Mark
// methods.
type Batch struct {
	File  *File
	Items [][]byte
}

// Size returns the number of bytes of the items without framing.
func (b *Batch) Size() int {
	var n int
	for _, item := range b.Items {
		n += len(item)
	}
	return n
}

// Decode unmarshals every item of b into a T.
func Decode[T any](b *Batch) ([]T, error) {
	vs := make([]T, 0, len(b.Items))
	for _, item := range b.Items {
		var v T
		err := json.Unmarshal(item, &v)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// Reader reads the oldest uploadable batch file.
type Reader struct {
	format DataFormat
	orch   *Orchestrator
	log    *slog.Logger
	parser fastjson.ParserPool
}

// NewReader returns a Reader for files produced with format.
func NewReader(format DataFormat, orch *Orchestrator, opts ...Option) *Reader {
	o := newOptions(opts)
	return &Reader{
		format: format,
		orch:   orch,
		log:    o.logger("reader"),
	}
}

// ReadNextBatch claims the oldest Readable file and returns its items.
// It returns a nil Batch and nil error when there is nothing to read or
// another batch is still being uploaded. Corrupted files are deleted
// and reported with a [CorruptedFileError].
func (r *Reader) ReadNextBatch(ctx context.Context) (*Batch, error) {
	f, ok := r.orch.ClaimNextFile()
	if !ok {
		return nil, nil
	}

	data, err := r.read(f)
	if errors.Is(err, fs.ErrNotExist) {
		r.orch.MarkCorrupted(f)
		return nil, CorruptedFileError{File: f.name, Cause: err}
	}
	if err != nil {
		r.orch.MarkUploadFailed(f)
		return nil, err
	}

	items, err := r.parse(data)
	if err != nil {
		r.log.WarnContext(ctx, "deleting corrupted batch file", slogfield.File(f.name), slogfield.Error(err))
		r.orch.MarkCorrupted(f)
		return nil, CorruptedFileError{File: f.name, Cause: err}
	}
	return &Batch{File: f, Items: items}, nil
}

func (r *Reader) read(f *File) ([]byte, error) {
	f.io.Lock()
	defer f.io.Unlock()

	return os.ReadFile(f.path)
}

func (r *Reader) parse(data []byte) ([][]byte, error) {
	p := r.parser.Get()
	defer r.parser.Put(p)

	return parseItems(p, r.format.complete(data))
}

// ParseBatch splits the content of a batch file into its items. The
// content may lack the format suffix, as files on disk do.
func ParseBatch(format DataFormat, data []byte) ([][]byte, error) {
	var p fastjson.Parser
	return parseItems(&p, format.complete(data))
}

func parseItems(p *fastjson.Parser, data []byte) ([][]byte, error) {
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeArray {
		return nil, errNotAnArray
	}

	arr, _ := v.Array()
	if len(arr) == 0 {
		return nil, errEmptyBatch
	}
	items := make([][]byte, len(arr))
	for i, val := range arr {
		items[i] = val.MarshalTo(nil)
	}
	return items, nil
}

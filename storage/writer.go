// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/z5labs/spool/internal/slogfield"
	"github.com/z5labs/spool/internal/try"
)

// ErrWriterClosed is reported to the log when a record arrives after
// the Writer was closed.
var ErrWriterClosed = errors.New("storage: writer closed")

// Writer appends values of type T to the batch files handed out by an
// Orchestrator. Write hands the append to a single background worker so
// asynchronous writes keep their order. WriteSync appends on the
// calling goroutine. Both share one append lock so frames never
// interleave.
//
// Neither method reports errors to the caller. Records which cannot be
// stored are logged and counted as dropped.
type Writer[T any] struct {
	format DataFormat
	orch   *Orchestrator
	preset Preset
	log    *slog.Logger
	inst   instruments

	appendMu sync.Mutex

	closeMu sync.RWMutex
	closed  bool
	queue   chan []byte
	done    chan struct{}
}

// NewWriter starts the Writer's background worker. Close must be called
// to flush pending writes and stop it.
func NewWriter[T any](format DataFormat, orch *Orchestrator, opts ...Option) *Writer[T] {
	o := newOptions(opts)
	w := &Writer[T]{
		format: format,
		orch:   orch,
		preset: orch.preset,
		log:    o.logger("writer"),
		inst:   newInstruments(o),
		queue:  make(chan []byte, o.queueSize),
		done:   make(chan struct{}),
	}
	go w.drain()
	return w
}

// Write serializes v and enqueues it for appending. If the orchestrator
// preset asks for synchronous writes it behaves like WriteSync.
func (w *Writer[T]) Write(ctx context.Context, v T) {
	if w.preset.SynchronousWrite {
		w.WriteSync(ctx, v)
		return
	}

	b, ok := w.encode(ctx, v)
	if !ok {
		return
	}

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		w.drop(ctx, ReasonClosed, ErrWriterClosed)
		return
	}
	select {
	case w.queue <- b:
	default:
		w.drop(ctx, ReasonQueueFull, errors.New("write queue is full"))
	}
}

// WriteSync serializes v and returns once it has been appended and
// synced to disk, or dropped.
func (w *Writer[T]) WriteSync(ctx context.Context, v T) {
	b, ok := w.encode(ctx, v)
	if !ok {
		return
	}

	w.closeMu.RLock()
	closed := w.closed
	w.closeMu.RUnlock()
	if closed {
		w.drop(ctx, ReasonClosed, ErrWriterClosed)
		return
	}
	w.append(ctx, b, true)
}

// Close stops accepting records and waits for queued ones to be
// appended. It returns ctx.Err() if ctx is done first.
func (w *Writer[T]) Close(ctx context.Context) error {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.closeMu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return nil
	}
}

func (w *Writer[T]) drain() {
	defer close(w.done)

	for b := range w.queue {
		w.appendSafely(b)
	}
}

func (w *Writer[T]) appendSafely(b []byte) {
	var err error
	defer func() {
		if err == nil {
			return
		}
		w.log.Error("recovered from panic while appending record", slogfield.Error(err))
		w.inst.recordDropped(ReasonIO)
	}()
	defer try.Recover(&err)

	w.append(context.Background(), b, false)
}

func (w *Writer[T]) encode(ctx context.Context, v T) ([]byte, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		w.drop(ctx, ReasonSerialization, err)
		return nil, false
	}
	if w.preset.MaxRecordSize > 0 && int64(len(b)) > w.preset.MaxRecordSize {
		w.drop(ctx, ReasonTooLarge, ErrRecordTooLarge)
		return nil, false
	}
	return b, true
}

func (w *Writer[T]) drop(ctx context.Context, reason string, err error) {
	w.inst.recordDropped(reason)
	w.log.WarnContext(
		ctx,
		"dropped record",
		slogfield.String("reason", reason),
		slogfield.Error(err),
	)
}

// attempts bounds how often an append chases a file that was rotated
// or evicted between being handed out and being locked.
const attempts = 3

func (w *Writer[T]) append(ctx context.Context, b []byte, sync bool) {
	w.appendMu.Lock()
	defer w.appendMu.Unlock()

	n := int64(len(w.format.Separator) + len(b))
	for range attempts {
		f, err := w.orch.CurrentWritableFile(n)
		if errors.Is(err, ErrQuotaExceeded) {
			w.drop(ctx, ReasonQuota, err)
			return
		}
		if errors.Is(err, ErrRecordTooLarge) {
			w.drop(ctx, ReasonTooLarge, err)
			return
		}
		if err != nil {
			w.drop(ctx, ReasonIO, err)
			return
		}

		done, err := w.appendTo(f, b, sync)
		if err != nil {
			w.drop(ctx, ReasonIO, err)
			return
		}
		if done {
			w.inst.recordWritten()
			return
		}
	}
	w.drop(ctx, ReasonIO, errors.New("no writable batch file available"))
}

// appendTo reports false without error when f stopped being writable
// before its io lock was acquired.
func (w *Writer[T]) appendTo(f *File, b []byte, sync bool) (bool, error) {
	f.io.Lock()
	defer f.io.Unlock()

	size, ok := w.orch.beginAppend(f)
	if !ok {
		return false, nil
	}

	lead := w.format.Separator
	if size == 0 {
		lead = w.format.Prefix
	}
	frame := make([]byte, 0, len(lead)+len(b))
	frame = append(frame, lead...)
	frame = append(frame, b...)

	err := w.writeFrame(f, size, frame, sync)
	if err != nil {
		return false, err
	}
	w.orch.endAppend(f, int64(len(frame)))
	return true, nil
}

func (w *Writer[T]) writeFrame(f *File, size int64, frame []byte, sync bool) (err error) {
	fd, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer try.Close(&err, fd)

	_, err = fd.Write(frame)
	if err == nil && sync {
		err = fd.Sync()
	}
	if err == nil {
		return nil
	}

	terr := fd.Truncate(size)
	if terr != nil {
		w.log.Error(
			"failed to roll back partial append, sealing batch file",
			slogfield.File(f.name),
			slogfield.Error(terr),
		)
		w.orch.abandon(f)
	}
	return err
}

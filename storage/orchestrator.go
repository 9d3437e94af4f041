// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/z5labs/spool/internal/slogfield"
)

var (
	// ErrQuotaExceeded is returned when a record cannot fit in the disk
	// quota even after every evictable file has been removed.
	ErrQuotaExceeded = errors.New("storage: disk quota exceeded")

	// ErrRecordTooLarge is returned for records which could never fit in
	// a single batch file.
	ErrRecordTooLarge = errors.New("storage: record exceeds max file size")
)

// DirectoryError is returned when the storage directory cannot be
// created or listed.
type DirectoryError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e DirectoryError) Error() string {
	return fmt.Sprintf("storage directory %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DirectoryError) Unwrap() error {
	return e.Cause
}

// Orchestrator owns the lifecycle of every batch file in one directory.
// It is the single source of truth for file state; writers, readers and
// uploaders only act on files it hands out.
type Orchestrator struct {
	dir    string
	preset Preset
	clock  Clock
	log    *slog.Logger
	inst   instruments

	mu          sync.Mutex
	files       []*File
	current     *File
	lastCreated time.Time
}

// NewOrchestrator creates dir if needed and adopts any batch files a
// previous process left behind as Readable.
func NewOrchestrator(dir string, p Preset, opts ...Option) (*Orchestrator, error) {
	err := p.Validate()
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, DirectoryError{Path: dir, Cause: err}
	}

	o := newOptions(opts)
	orch := &Orchestrator{
		dir:    dir,
		preset: p,
		clock:  o.clock,
		log:    o.logger("orchestrator"),
		inst:   newInstruments(o),
	}
	err = orch.adopt()
	if err != nil {
		return nil, err
	}
	return orch, nil
}

// Dir returns the directory owned by the Orchestrator.
func (o *Orchestrator) Dir() string {
	return o.dir
}

func (o *Orchestrator) adopt() error {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return DirectoryError{Path: o.dir, Cause: err}
	}

	var leftovers []doomed
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		created, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		f := &File{
			name:    entry.Name(),
			path:    filepath.Join(o.dir, entry.Name()),
			created: created,
			state:   Readable,
			size:    info.Size(),
			records: -1,
		}
		if f.size == 0 {
			f.state = Deleted
			leftovers = append(leftovers, doomed{file: f})
			continue
		}
		o.files = append(o.files, f)
		if created.After(o.lastCreated) {
			o.lastCreated = created
		}
	}
	slices.SortFunc(o.files, func(a, b *File) int {
		return a.created.Compare(b.created)
	})
	o.remove(leftovers)

	if len(o.files) > 0 {
		o.log.Info("adopted batch files from previous run", slogfield.Int("files", len(o.files)))
	}
	return nil
}

// CurrentWritableFile returns the file the next record of n bytes should
// be appended to. The current file is rotated when its write window has
// elapsed or the record would not fit in it, and a new file is opened
// when there is none. Expired and, if needed, the oldest Readable files
// are removed to keep the directory within its quota.
func (o *Orchestrator) CurrentWritableFile(n int64) (*File, error) {
	if n > o.preset.MaxFileSize {
		return nil, ErrRecordTooLarge
	}

	o.mu.Lock()
	now := o.clock.Now()

	var victims []doomed
	if cur := o.current; cur != nil && !o.canAppend(cur, n, now) {
		if cur.size == 0 {
			// nothing was ever written, so a fresh file replaces it
			o.drop(cur)
			victims = append(victims, doomed{file: cur})
		} else {
			o.seal(cur)
		}
	}
	victims = append(victims, o.expire(now)...)
	victims = append(victims, o.evict(n)...)

	if o.totalSize()+n > o.preset.MaxDirectorySize {
		o.mu.Unlock()
		o.remove(victims)
		return nil, ErrQuotaExceeded
	}

	if o.current == nil {
		o.current = o.create(now)
	}
	f := o.current
	o.mu.Unlock()

	o.remove(victims)
	return f, nil
}

// EligibleFilesForUpload returns the Readable files, oldest first. The
// writable file is promoted first if its write window has elapsed, and
// files past their retention are removed.
func (o *Orchestrator) EligibleFilesForUpload() []*File {
	o.mu.Lock()
	now := o.clock.Now()
	o.promote(now)
	victims := o.expire(now)

	var eligible []*File
	for _, f := range o.files {
		if f.state == Readable {
			eligible = append(eligible, f)
		}
	}
	o.mu.Unlock()

	o.remove(victims)
	return eligible
}

// ClaimNextFile moves the oldest Readable file to Uploading. It reports
// false if there is nothing to upload or another file is still being
// uploaded.
func (o *Orchestrator) ClaimNextFile() (*File, bool) {
	o.mu.Lock()
	now := o.clock.Now()
	o.promote(now)
	victims := o.expire(now)

	var claimed *File
	busy := slices.ContainsFunc(o.files, func(f *File) bool {
		return f.state == Uploading
	})
	if !busy {
		for _, f := range o.files {
			if f.state == Readable {
				f.state = Uploading
				claimed = f
				break
			}
		}
	}
	o.mu.Unlock()

	o.remove(victims)
	return claimed, claimed != nil
}

// MarkUploadSucceeded deletes a delivered file. Calling it for a file
// which is already deleted is a no-op.
func (o *Orchestrator) MarkUploadSucceeded(f *File) {
	o.finish(f, ReasonUploaded)
}

// MarkUploadRejected deletes a file the backend refused permanently.
func (o *Orchestrator) MarkUploadRejected(f *File) {
	o.finish(f, ReasonRejected)
}

// MarkCorrupted deletes a file whose content cannot be decoded.
func (o *Orchestrator) MarkCorrupted(f *File) {
	o.finish(f, ReasonCorrupted)
}

// MarkUploadFailed returns an Uploading file to Readable so a later
// cycle retries it, unless it has outlived the retention in which case
// it is deleted.
func (o *Orchestrator) MarkUploadFailed(f *File) {
	o.mu.Lock()
	if f.state != Uploading {
		o.mu.Unlock()
		return
	}

	var victims []doomed
	if o.clock.Now().Sub(f.created) > o.preset.MaxFileAgeForRead {
		o.drop(f)
		victims = append(victims, doomed{file: f, reason: ReasonExpired})
	} else {
		f.state = Readable
	}
	o.mu.Unlock()

	o.remove(victims)
}

// Sweep promotes an aged writable file, deletes files past their
// retention and evicts the oldest Readable files while the directory is
// over quota. It returns the number of deleted files.
func (o *Orchestrator) Sweep() int {
	o.mu.Lock()
	now := o.clock.Now()
	o.promote(now)
	victims := o.expire(now)
	victims = append(victims, o.evict(0)...)
	o.mu.Unlock()

	o.remove(victims)
	return len(victims)
}

// Files returns a snapshot of every tracked file, oldest first.
func (o *Orchestrator) Files() []FileInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	infos := make([]FileInfo, len(o.files))
	for i, f := range o.files {
		infos[i] = FileInfo{
			Name:    f.name,
			Created: f.created,
			State:   f.state,
			Size:    f.size,
			Records: f.records,
		}
	}
	return infos
}

// WritableCount returns the number of Writable files, which is always
// zero or one.
func (o *Orchestrator) WritableCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	var n int
	for _, f := range o.files {
		if f.state == Writable {
			n++
		}
	}
	return n
}

// TotalSize returns the bytes used by every tracked file.
func (o *Orchestrator) TotalSize() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.totalSize()
}

func (o *Orchestrator) beginAppend(f *File) (int64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return f.size, f.state == Writable
}

func (o *Orchestrator) endAppend(f *File, n int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if f.state == Deleted {
		return
	}
	f.size += n
	f.records++
	if f.state == Writable && (f.records >= o.preset.MaxRecordsInFile || f.size >= o.preset.MaxFileSize) {
		o.seal(f)
	}
}

// abandon stops further appends to f after a write left it in an
// unknown state.
func (o *Orchestrator) abandon(f *File) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if f.state == Writable {
		o.seal(f)
	}
}

func (o *Orchestrator) canAppend(f *File, n int64, now time.Time) bool {
	if f.size == 0 {
		return now.Sub(f.created) < o.preset.MaxFileAgeForWrite
	}
	return now.Sub(f.created) < o.preset.MaxFileAgeForWrite &&
		f.size+n <= o.preset.MaxFileSize &&
		f.records < o.preset.MaxRecordsInFile
}

func (o *Orchestrator) create(now time.Time) *File {
	created := now.Truncate(time.Millisecond)
	if !created.After(o.lastCreated) {
		created = o.lastCreated.Add(time.Millisecond)
	}
	o.lastCreated = created

	name := fileName(created)
	f := &File{
		name:    name,
		path:    filepath.Join(o.dir, name),
		created: created,
		state:   Writable,
	}
	o.files = append(o.files, f)
	o.log.Debug("opened batch file", slogfield.File(name))
	return f
}

func (o *Orchestrator) seal(f *File) {
	f.state = Readable
	if o.current == f {
		o.current = nil
	}
	o.log.Debug(
		"rotated batch file",
		slogfield.File(f.name),
		slogfield.Int64("size", f.size),
		slogfield.Int("records", f.records),
	)
}

func (o *Orchestrator) promote(now time.Time) {
	cur := o.current
	if cur == nil || cur.records == 0 {
		return
	}
	if now.Sub(cur.created) >= o.preset.MaxFileAgeForWrite {
		o.seal(cur)
	}
}

func (o *Orchestrator) expire(now time.Time) []doomed {
	var victims []doomed
	for _, f := range slices.Clone(o.files) {
		if f.state != Readable {
			continue
		}
		if now.Sub(f.created) <= o.preset.MaxFileAgeForRead {
			continue
		}
		o.drop(f)
		victims = append(victims, doomed{file: f, reason: ReasonExpired})
	}
	return victims
}

func (o *Orchestrator) evict(incoming int64) []doomed {
	var victims []doomed
	for o.totalSize()+incoming > o.preset.MaxDirectorySize {
		i := slices.IndexFunc(o.files, func(f *File) bool {
			return f.state == Readable
		})
		if i < 0 {
			break
		}
		f := o.files[i]
		o.drop(f)
		victims = append(victims, doomed{file: f, reason: ReasonEvicted})
	}
	return victims
}

func (o *Orchestrator) drop(f *File) bool {
	if f.state == Deleted {
		return false
	}
	f.state = Deleted
	o.files = slices.DeleteFunc(o.files, func(g *File) bool {
		return g == f
	})
	if o.current == f {
		o.current = nil
	}
	return true
}

func (o *Orchestrator) finish(f *File, reason string) {
	o.mu.Lock()
	ok := o.drop(f)
	o.mu.Unlock()
	if !ok {
		return
	}
	o.remove([]doomed{{file: f, reason: reason}})
}

func (o *Orchestrator) totalSize() int64 {
	var total int64
	for _, f := range o.files {
		total += f.size
	}
	return total
}

type doomed struct {
	file   *File
	reason string
}

// remove deletes files from disk. It must be called without holding mu.
func (o *Orchestrator) remove(victims []doomed) {
	for _, v := range victims {
		v.file.io.Lock()
		err := os.Remove(v.file.path)
		v.file.io.Unlock()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			o.log.Warn("failed to remove batch file", slogfield.File(v.file.name), slogfield.Error(err))
		}
		if v.reason == "" {
			continue
		}

		o.inst.fileDeleted(v.reason)
		lvl := slog.LevelDebug
		if v.reason == ReasonEvicted || v.reason == ReasonExpired || v.reason == ReasonCorrupted {
			lvl = slog.LevelWarn
		}
		o.log.Log(
			context.Background(),
			lvl,
			"deleted batch file",
			slogfield.File(v.file.name),
			slogfield.String("reason", v.reason),
			slogfield.Int64("size", v.file.size),
		)
	}
}

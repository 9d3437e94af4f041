// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// State is the lifecycle state of a batch file.
type State int

const (
	Writable State = iota
	Readable
	Uploading
	Deleted
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case Writable:
		return "writable"
	case Readable:
		return "readable"
	case Uploading:
		return "uploading"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// File is a batch file tracked by an Orchestrator. Its identity is its
// name, which encodes the creation time in unix milliseconds.
type File struct {
	name    string
	path    string
	created time.Time

	// io serializes disk access to the file.
	io sync.Mutex

	// guarded by Orchestrator.mu
	state   State
	size    int64
	records int
}

// Name returns the file name inside the storage directory.
func (f *File) Name() string {
	return f.name
}

// Path returns the absolute path of the file.
func (f *File) Path() string {
	return f.path
}

// Created returns the creation time encoded in the file name.
func (f *File) Created() time.Time {
	return f.created
}

// FileInfo is a point in time view of a tracked file.
type FileInfo struct {
	Name    string
	Created time.Time
	State   State
	Size    int64
	// Records is -1 for files adopted from a previous process.
	Records int
}

func fileName(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseFileName(name string) (time.Time, bool) {
	ms, err := strconv.ParseInt(name, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package storage

import (
	"os"
	"path/filepath"
	"time"
)

// Entry describes a batch file found by Inspect.
type Entry struct {
	Name    string
	Created time.Time
	Size    int64

	// Records is the number of records in the file, or -1 if the
	// file could not be parsed.
	Records int
}

// Corrupted reports whether the file could not be parsed.
func (e Entry) Corrupted() bool {
	return e.Records < 0
}

// Inspect lists the batch files in dir, oldest first. Unlike
// NewOrchestrator it never creates, seals or removes anything, so it
// is safe to run against a directory owned by a live process.
func Inspect(dir string, format DataFormat) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, DirectoryError{Path: dir, Cause: err}
	}

	var out []Entry
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

		e := Entry{
			Name:    entry.Name(),
			Created: created,
			Size:    info.Size(),
			Records: -1,
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err == nil {
			items, err := ParseBatch(format, data)
			if err == nil {
				e.Records = len(items)
			}
		}
		out = append(out, e)
	}
	// os.ReadDir sorts by name and names are fixed width millisecond
	// timestamps, so out is already oldest first.
	return out, nil
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package storage persists records to disk in batch files and decides
// which of those files may be written, uploaded or discarded.
//
// A directory is owned by a single Orchestrator. The Orchestrator keeps
// a state table of every batch file:
//
//	Writable -> Readable -> Uploading -> Deleted
//	                ^            |
//	                +------------+ (upload failed, still within retention)
//
// At most one file is Writable and at most one file is Uploading at any
// time. A Writer appends records to the Writable file and a Reader hands
// the oldest Readable file to the uploader. State transitions happen under
// the Orchestrator's mutex while all disk I/O happens outside of it,
// guarded by a per file lock.
//
// Batch files are framed as a JSON array: the prefix is written with the
// first record, every later record is preceded by the separator, and the
// suffix is added by the Reader. Appending never rewrites earlier bytes.
package storage

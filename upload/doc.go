// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package upload delivers batch files produced by package storage to an
// HTTP intake.
//
// A [Feature] runs one upload cycle at a time: it evaluates its
// [Condition], claims the oldest uploadable batch, builds the requests
// with a [RequestBuilder], sends them through a [Client] and reports the
// [Outcome] back to the storage orchestrator. Retryable failures leave
// the file in place for a later cycle; the orchestrator's retention
// bounds how long that can go on.
package upload

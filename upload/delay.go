// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"net/http"
	"sync"
	"time"

	"github.com/z5labs/spool/storage"

	"github.com/hashicorp/go-retryablehttp"
)

// Delay is the time between upload cycles. It shrinks while batches are
// delivered and grows while there is nothing to do or the intake is
// failing, staying within its bounds.
type Delay struct {
	mu      sync.Mutex
	current time.Duration
	min     time.Duration
	max     time.Duration
	rate    float64
}

// NewDelay starts at the preset's initial upload delay.
func NewDelay(p storage.Preset) *Delay {
	d := &Delay{
		current: p.InitialUploadDelay,
		min:     p.MinUploadDelay,
		max:     p.MaxUploadDelay,
		rate:    p.UploadDelayChangeRate,
	}
	if d.current <= 0 {
		d.current = p.DefaultUploadDelay
	}
	if d.max < d.min {
		d.max = d.min
	}
	return d
}

// Current
func (d *Delay) Current() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Decrease shrinks the delay by the change rate.
func (d *Delay) Decrease() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(time.Duration(float64(d.current) * (1 - d.rate)))
}

// Increase grows the delay by the change rate.
func (d *Delay) Increase() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set(time.Duration(float64(d.current) * (1 + d.rate)))
}

// Observe adjusts the delay after a cycle. A Retry-After header on a
// 429 or 503 response raises the delay to at least the requested time.
func (d *Delay) Observe(outcome Outcome, resp *http.Response) {
	if outcome == Success {
		d.Decrease()
		return
	}
	d.Increase()

	if resp == nil || resp.Header.Get("Retry-After") == "" {
		return
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	wait := retryablehttp.DefaultBackoff(d.min, d.max, 0, resp)
	if wait > d.current {
		d.set(wait)
	}
}

func (d *Delay) set(v time.Duration) {
	d.current = min(max(v, d.min), d.max)
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/spool/storage"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func featurePreset() storage.Preset {
	return storage.Preset{
		MaxFileSize:           1024,
		MaxDirectorySize:      1 << 20,
		MaxFileAgeForWrite:    5 * time.Second,
		MaxFileAgeForRead:     time.Hour,
		MaxRecordsInFile:      2,
		InitialUploadDelay:    10 * time.Millisecond,
		DefaultUploadDelay:    10 * time.Millisecond,
		MinUploadDelay:        10 * time.Millisecond,
		MaxUploadDelay:        50 * time.Millisecond,
		UploadDelayChangeRate: 0.5,
	}
}

// intake records every request body and answers with the next queued
// status code for that body, or 200 once the queue is empty.
type intake struct {
	mu       sync.Mutex
	statuses map[string][]int
	hits     map[string]int
	headers  []http.Header
	queries  []url.Values
	delay    time.Duration
}

func newIntake() *intake {
	return &intake{
		statuses: make(map[string][]int),
		hits:     make(map[string]int),
	}
}

func (i *intake) respond(body string, codes ...int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.statuses[body] = append(i.statuses[body], codes...)
}

func (i *intake) count(body string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hits[body]
}

func (i *intake) total() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	var n int
	for _, hits := range i.hits {
		n += hits
	}
	return n
}

func (i *intake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = r.Body
	if r.Header.Get(ContentEncodingHeader) == string(Deflate) {
		zr, err := zlib.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body = zr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if i.delay > 0 {
		select {
		case <-r.Context().Done():
		case <-time.After(i.delay):
		}
	}

	i.mu.Lock()
	key := string(b)
	i.hits[key]++
	i.headers = append(i.headers, r.Header.Clone())
	i.queries = append(i.queries, r.URL.Query())
	code := http.StatusOK
	if codes := i.statuses[key]; len(codes) > 0 {
		code = codes[0]
		i.statuses[key] = codes[1:]
	}
	i.mu.Unlock()

	w.WriteHeader(code)
}

type featureEnv struct {
	clock   *testClock
	orch    *storage.Orchestrator
	writer  *storage.Writer[string]
	intake  *intake
	server  *httptest.Server
	metrics *sdkmetric.ManualReader
	meters  *sdkmetric.MeterProvider
	client  *Client
}

func newFeatureEnv(t *testing.T, clientOpts ...ClientOption) *featureEnv {
	t.Helper()

	env := &featureEnv{
		clock:   &testClock{now: time.UnixMilli(1_700_000_000_000)},
		intake:  newIntake(),
		metrics: sdkmetric.NewManualReader(),
	}
	env.meters = sdkmetric.NewMeterProvider(sdkmetric.WithReader(env.metrics))
	env.server = httptest.NewServer(env.intake)
	t.Cleanup(env.server.Close)

	orch, err := storage.NewOrchestrator(t.TempDir(), featurePreset(), storage.WithClock(env.clock))
	if err != nil {
		t.Fatal(err)
	}
	env.orch = orch
	env.writer = storage.NewWriter[string](storage.JSONArray, orch)
	t.Cleanup(func() {
		env.writer.Close(context.Background())
	})
	env.client = NewClient(clientOpts...)
	return env
}

func (env *featureEnv) write(vs ...string) {
	for _, v := range vs {
		env.writer.WriteSync(context.Background(), v)
	}
}

func (env *featureEnv) feature(t *testing.T, cond Condition, headers []Header, opts ...FeatureOption) *Feature {
	t.Helper()

	rb, err := NewRequestBuilder(env.server.URL+"/api/v2/logs", url.Values{"ddsource": {"go"}}, headers)
	if err != nil {
		t.Fatal(err)
	}
	return env.featureWith(rb, cond, opts...)
}

func (env *featureEnv) featureWith(rb *RequestBuilder, cond Condition, opts ...FeatureOption) *Feature {
	opts = append([]FeatureOption{FeatureMeterProvider(env.meters)}, opts...)
	return NewFeature(
		"logs",
		storage.NewReader(storage.JSONArray, env.orch),
		env.orch,
		rb,
		env.client,
		cond,
		NewDelay(featurePreset()),
		opts...,
	)
}

func (env *featureEnv) uploads(t *testing.T, outcome Outcome) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	err := env.metrics.Collect(context.Background(), &rm)
	if err != nil {
		t.Fatal(err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "spool.uploads" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				v, ok := dp.Attributes.Value(attribute.Key("outcome"))
				if ok && v.AsString() == outcome.String() {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestFeature_Cycle(t *testing.T) {
	t.Run("will retry a batch after a retryable failure and upload the next one", func(t *testing.T) {
		env := newFeatureEnv(t)
		env.intake.respond(`["A","B"]`, http.StatusServiceUnavailable)
		f := env.feature(t, Always, []Header{JSON(), APIKey("secret")})

		env.write("A", "B", "C", "D")
		env.clock.Advance(5 * time.Second)

		infos := env.orch.Files()
		if !assert.Len(t, infos, 2) {
			return
		}
		assert.Equal(t, []storage.State{storage.Readable, storage.Readable}, []storage.State{infos[0].State, infos[1].State})

		assert.Equal(t, RetryableFailure, f.Cycle(context.Background()))
		assert.Len(t, env.orch.Files(), 2)

		assert.Equal(t, Success, f.Cycle(context.Background()))
		assert.Equal(t, Success, f.Cycle(context.Background()))
		assert.Equal(t, Idle, f.Cycle(context.Background()))

		assert.Equal(t, 2, env.intake.count(`["A","B"]`))
		assert.Equal(t, 1, env.intake.count(`["C","D"]`))
		assert.Empty(t, env.orch.Files())

		assert.Equal(t, int64(2), env.uploads(t, Success))
		assert.Equal(t, int64(1), env.uploads(t, RetryableFailure))
		assert.Equal(t, int64(1), env.uploads(t, Idle))

		for _, h := range env.intake.headers {
			assert.Equal(t, "application/json", h.Get(ContentTypeHeader))
			assert.Equal(t, "secret", h.Get(APIKeyHeader))
		}
		for _, q := range env.intake.queries {
			assert.Equal(t, "go", q.Get("ddsource"))
		}
	})

	t.Run("will keep the batch for a later cycle", func(t *testing.T) {
		t.Run("if the intake does not implement the request", func(t *testing.T) {
			env := newFeatureEnv(t)
			env.intake.respond(`["A","B"]`, http.StatusNotImplemented)
			f := env.feature(t, Always, nil)

			env.write("A", "B")
			env.clock.Advance(5 * time.Second)

			assert.Equal(t, RetryableFailure, f.Cycle(context.Background()))
			assert.Equal(t, 1, env.intake.count(`["A","B"]`))

			infos := env.orch.Files()
			if !assert.Len(t, infos, 1) {
				return
			}
			assert.Equal(t, storage.Readable, infos[0].State)

			assert.Equal(t, Success, f.Cycle(context.Background()))
			assert.Empty(t, env.orch.Files())
		})
	})

	t.Run("will skip the cycle", func(t *testing.T) {
		t.Run("if the upload condition is not ready", func(t *testing.T) {
			env := newFeatureEnv(t)
			f := env.feature(t, Never, nil)
			env.write("A")
			env.clock.Advance(5 * time.Second)

			assert.Equal(t, Skipped, f.Cycle(context.Background()))
			assert.Equal(t, 0, env.intake.total())
			assert.Len(t, env.orch.EligibleFilesForUpload(), 1)
		})

		t.Run("if the circuit breaker is open", func(t *testing.T) {
			env := newFeatureEnv(t, TripAfter(1), OpenStateTimeout(time.Hour))
			env.intake.respond(`["A","B"]`, http.StatusInternalServerError)
			f := env.feature(t, Always, nil)
			env.write("A", "B")

			assert.Equal(t, RetryableFailure, f.Cycle(context.Background()))
			assert.Equal(t, Skipped, f.Cycle(context.Background()))
			assert.Equal(t, 1, env.intake.total())
			assert.Len(t, env.orch.EligibleFilesForUpload(), 1)

			gated := env.feature(t, CircuitClosed(env.client), nil)
			assert.Equal(t, Skipped, gated.Cycle(context.Background()))
			assert.Equal(t, 1, env.intake.total())
		})
	})

	t.Run("will delete the batch", func(t *testing.T) {
		t.Run("if the intake rejects it permanently", func(t *testing.T) {
			env := newFeatureEnv(t)
			env.intake.respond(`["A","B"]`, http.StatusBadRequest)
			f := env.feature(t, Always, nil)
			env.write("A", "B")

			assert.Equal(t, PermanentFailure, f.Cycle(context.Background()))
			assert.Empty(t, env.orch.Files())
			assert.Equal(t, 1, env.intake.total())
		})
	})

	t.Run("will treat a timed out request as retryable", func(t *testing.T) {
		env := newFeatureEnv(t)
		env.intake.delay = time.Second
		f := env.feature(t, Always, nil, RequestTimeout(50*time.Millisecond))
		env.write("A", "B")

		assert.Equal(t, RetryableFailure, f.Cycle(context.Background()))
		assert.Len(t, env.orch.EligibleFilesForUpload(), 1)
	})

	t.Run("will not abort a request in flight", func(t *testing.T) {
		t.Run("if the context is cancelled", func(t *testing.T) {
			env := newFeatureEnv(t)
			env.intake.delay = 100 * time.Millisecond
			f := env.feature(t, Always, nil)
			env.write("A", "B")

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()

			assert.Equal(t, Success, f.Cycle(ctx))
			assert.Empty(t, env.orch.Files())
		})
	})

	t.Run("will send a split batch as several requests", func(t *testing.T) {
		env := newFeatureEnv(t)
		rb, err := NewRequestBuilder(env.server.URL, nil, nil, MaxPayloadSize(5))
		if !assert.Nil(t, err) {
			return
		}
		f := env.featureWith(rb, Always)
		env.write("A", "B")

		assert.Equal(t, Success, f.Cycle(context.Background()))
		assert.Equal(t, 1, env.intake.count(`["A"]`))
		assert.Equal(t, 1, env.intake.count(`["B"]`))
	})

	t.Run("will upload deflated payloads", func(t *testing.T) {
		env := newFeatureEnv(t)
		f := env.feature(t, Always, []Header{JSON(), ContentEncoding(Deflate)})
		env.write("A", "B")

		assert.Equal(t, Success, f.Cycle(context.Background()))
		assert.Equal(t, 1, env.intake.count(`["A","B"]`))
		assert.Equal(t, "deflate", env.intake.headers[0].Get(ContentEncodingHeader))
	})
}

func TestFeature_Run(t *testing.T) {
	t.Run("will upload on wake and stop when the context is cancelled", func(t *testing.T) {
		env := newFeatureEnv(t)
		p := featurePreset()
		p.InitialUploadDelay = time.Hour
		p.MaxUploadDelay = time.Hour
		rb, err := NewRequestBuilder(env.server.URL, nil, nil)
		if !assert.Nil(t, err) {
			return
		}
		f := NewFeature(
			"logs",
			storage.NewReader(storage.JSONArray, env.orch),
			env.orch,
			rb,
			env.client,
			Always,
			NewDelay(p),
		)
		env.write("A", "B")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- f.Run(ctx)
		}()

		f.Wake()
		assert.Eventually(t, func() bool {
			return env.intake.count(`["A","B"]`) == 1
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.Nil(t, err)
		case <-time.After(5 * time.Second):
			t.Error("run did not return after cancel")
		}
	})
}

func TestFeature_Drain(t *testing.T) {
	t.Run("will upload every batch", func(t *testing.T) {
		env := newFeatureEnv(t)
		env.intake.respond(`["C","D"]`, http.StatusForbidden)
		f := env.feature(t, Always, nil)
		env.write("A", "B", "C", "D", "E", "F", "G")
		env.clock.Advance(6 * time.Second)

		delivered, outcome := f.Drain(context.Background())

		assert.Equal(t, 3, delivered)
		assert.Equal(t, Idle, outcome)
		assert.Empty(t, env.orch.Files())
	})

	t.Run("will stop at the first retryable failure", func(t *testing.T) {
		env := newFeatureEnv(t)
		env.intake.respond(`["C","D"]`, http.StatusServiceUnavailable)
		f := env.feature(t, Always, nil)
		env.write("A", "B", "C", "D", "E")
		env.clock.Advance(6 * time.Second)

		delivered, outcome := f.Drain(context.Background())

		assert.Equal(t, 1, delivered)
		assert.Equal(t, RetryableFailure, outcome)
		assert.Len(t, env.orch.Files(), 2)
	})
}

func TestClient_Do(t *testing.T) {
	t.Run("will retry within one attempt", func(t *testing.T) {
		t.Run("if retries are enabled", func(t *testing.T) {
			env := newFeatureEnv(t, RetryMax(2), RetryWait(time.Millisecond, 5*time.Millisecond))
			env.intake.respond("[1]", http.StatusServiceUnavailable, http.StatusBadGateway)

			rb, err := NewRequestBuilder(env.server.URL, nil, nil)
			if !assert.Nil(t, err) {
				return
			}
			reqs, err := rb.Build(context.Background(), [][]byte{[]byte("1")})
			if !assert.Nil(t, err) {
				return
			}

			resp, err := env.client.Do(reqs[0])
			if !assert.Nil(t, err) {
				return
			}
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, 3, env.intake.count("[1]"))
		})
	})
}

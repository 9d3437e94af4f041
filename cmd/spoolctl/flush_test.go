// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/spool"
	"github.com/z5labs/spool/upload"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	status int
	bodies []string
	keys   []string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b, _ := io.ReadAll(req.Body)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, string(b))
	r.keys = append(r.keys, req.Header.Get(upload.APIKeyHeader))
	if r.status != 0 {
		w.WriteHeader(r.status)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeConfig(t *testing.T, url, root string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "spool.yaml")
	content := fmt.Sprintf(`
endpoint:
  logsURL: %s
apiKey: from-file
payloadCompression: false
performance:
  preset: instantDataDelivery
storage:
  directory: %s
`, url, root)
	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

// freshBatches names contents after the current time so the preset's
// retention does not expire them on adoption.
func freshBatches(contents ...string) map[string]string {
	now := time.Now().Add(-time.Minute).UnixMilli()
	files := make(map[string]string, len(contents))
	for i, c := range contents {
		files[strconv.FormatInt(now+int64(i), 10)] = c
	}
	return files
}

func TestFlush(t *testing.T) {
	t.Run("will upload every buffered batch oldest first", func(t *testing.T) {
		rec := &recorder{}
		srv := httptest.NewServer(rec)
		defer srv.Close()

		root := seedStorage(t, freshBatches(`[{"message":"a"}`, `[{"message":"b"}`))

		out, err := execute("flush", "-c", writeConfig(t, srv.URL, root))
		if !assert.Nil(t, err) {
			return
		}
		assert.Contains(t, out, "delivered 2 batches")

		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.Equal(t, []string{`[{"message":"a"}]`, `[{"message":"b"}]`}, rec.bodies)
		assert.Equal(t, []string{"from-file", "from-file"}, rec.keys)

		entries, err := os.ReadDir(filepath.Join(root, spool.LogsDirectory))
		if !assert.Nil(t, err) {
			return
		}
		assert.Empty(t, entries)
	})

	t.Run("will let the environment override the config file", func(t *testing.T) {
		rec := &recorder{}
		srv := httptest.NewServer(rec)
		defer srv.Close()

		root := seedStorage(t, freshBatches(`[{"message":"a"}`))
		t.Setenv(EnvPrefix+"API_KEY", "from-env")

		_, err := execute("flush", "-c", writeConfig(t, srv.URL, root))
		if !assert.Nil(t, err) {
			return
		}

		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.Equal(t, []string{"from-env"}, rec.keys)
	})

	t.Run("will render the config file as a template", func(t *testing.T) {
		rec := &recorder{}
		srv := httptest.NewServer(rec)
		defer srv.Close()

		root := seedStorage(t, freshBatches(`[{"message":"a"}`))
		t.Setenv("INTAKE_KEY", "from-template")

		path := filepath.Join(t.TempDir(), "spool.json")
		content := fmt.Sprintf(`{
  "endpoint": {"logsURL": %q},
  "apiKey": "{{env "INTAKE_KEY"}}",
  "payloadCompression": false,
  "performance": {"preset": "instantDataDelivery"},
  "storage": {"directory": %q}
}`, srv.URL, root)
		err := os.WriteFile(path, []byte(content), 0o600)
		if !assert.Nil(t, err) {
			return
		}

		_, err = execute("flush", "-c", path)
		if !assert.Nil(t, err) {
			return
		}

		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.Equal(t, []string{"from-template"}, rec.keys)
	})

	t.Run("will return a FlushError", func(t *testing.T) {
		t.Run("if the endpoint keeps failing", func(t *testing.T) {
			rec := &recorder{status: http.StatusServiceUnavailable}
			srv := httptest.NewServer(rec)
			defer srv.Close()

			root := seedStorage(t, freshBatches(`[{"message":"a"}`))

			out, err := execute("flush", "-c", writeConfig(t, srv.URL, root))

			var ferr spool.FlushError
			if !assert.ErrorAs(t, err, &ferr) {
				return
			}
			assert.Equal(t, upload.RetryableFailure, ferr.Outcome)
			assert.Contains(t, out, "delivered 0 batches")

			entries, err := os.ReadDir(filepath.Join(root, spool.LogsDirectory))
			if !assert.Nil(t, err) {
				return
			}
			assert.Len(t, entries, 1)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the config file does not exist", func(t *testing.T) {
			_, err := execute("flush", "-c", filepath.Join(t.TempDir(), "missing.yaml"))

			var rerr spool.ConfigReadError
			assert.ErrorAs(t, err, &rerr)
		})
	})
}

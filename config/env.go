// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"

	"github.com/z5labs/spool/config/key"
)

// Env represents a Source where its underlying values
// are extracted from environment variables.
type Env struct {
	prefix  string
	environ func() []string
}

// FromEnv returns a Source which applies every environment variable
// starting with prefix. The prefix is stripped and a double underscore
// nests keys, e.g. SPOOL_UPLOAD__TIMEOUT=10s sets upload.timeout.
func FromEnv(prefix string) Env {
	return Env{
		prefix:  prefix,
		environ: os.Environ,
	}
}

// Apply implements the Source interface.
func (src Env) Apply(store Store) error {
	for _, pair := range src.environ() {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, ok := strings.CutPrefix(k, src.prefix)
		if !ok || name == "" {
			continue
		}

		var chain key.Chain
		for _, part := range strings.Split(name, "__") {
			chain = append(chain, key.Name(strings.ReplaceAll(part, "_", "")))
		}
		err := store.Set(chain, v)
		if err != nil {
			return err
		}
	}
	return nil
}

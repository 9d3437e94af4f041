// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spool

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/z5labs/spool/config"
	"github.com/z5labs/spool/storage"
)

// Endpoint holds the intake urls, one per telemetry signal.
type Endpoint struct {
	LogsURL string `config:"logsURL"`
}

// Performance selects a built-in preset by name. Any preset field set
// alongside the name overrides the preset's value.
type Performance struct {
	Name           string `config:"preset"`
	storage.Preset `config:",squash"`
}

// Storage
type Storage struct {
	// Directory is the root of the disk buffer. Each signal uses its
	// own subdirectory.
	Directory string `config:"directory"`
}

// Circuit configures the circuit breaker in front of the intake.
type Circuit struct {
	TripAfter   uint32        `config:"tripAfter"`
	OpenTimeout time.Duration `config:"openTimeout"`
}

// Upload
type Upload struct {
	// Timeout bounds every request.
	Timeout time.Duration `config:"timeout"`

	// MaxPayloadSize splits batches into several requests. Zero never splits.
	MaxPayloadSize int `config:"maxPayloadSize"`

	// RetryMax retries a request within one upload cycle.
	RetryMax int `config:"retryMax"`

	Circuit Circuit `config:"circuit"`
}

// Configuration is everything needed to build a [LogsExporter]. It is
// passed by value and never changed after construction.
type Configuration struct {
	Endpoint           Endpoint    `config:"endpoint"`
	APIKey             string      `config:"apiKey"`
	Source             string      `config:"source"`
	Service            string      `config:"service"`
	Environment        string      `config:"environment"`
	LoggerName         string      `config:"loggerName"`
	ApplicationName    string      `config:"applicationName"`
	Version            string      `config:"version"`
	Device             string      `config:"device"`
	PayloadCompression bool        `config:"payloadCompression"`
	Performance        Performance `config:"performance"`
	Storage            Storage     `config:"storage"`
	Upload             Upload      `config:"upload"`
}

// DefaultConfiguration is the base every read configuration is
// applied on top of.
func DefaultConfiguration() Configuration {
	return Configuration{
		Source:             "go",
		LoggerName:         "spool",
		ApplicationName:    filepath.Base(os.Args[0]),
		Version:            "0.0.0",
		Device:             runtime.GOOS + "/" + runtime.GOARCH,
		PayloadCompression: true,
		Performance: Performance{
			Name:   LowRuntimeImpact,
			Preset: storage.LowRuntimeImpact,
		},
		Storage: Storage{
			Directory: filepath.Join(os.TempDir(), "spool"),
		},
		Upload: Upload{
			Timeout: 30 * time.Second,
			Circuit: Circuit{
				TripAfter:   5,
				OpenTimeout: time.Minute,
			},
		},
	}
}

// ReadConfiguration merges srcs, later ones winning, on top of
// [DefaultConfiguration]. The performance preset named by
// performance.preset is resolved before field overrides are applied.
func ReadConfiguration(srcs ...config.Source) (Configuration, error) {
	m, err := config.Read(srcs...)
	if err != nil {
		return Configuration{}, ConfigReadError{Cause: err}
	}

	var selected struct {
		Performance struct {
			Name string `config:"preset"`
		} `config:"performance"`
	}
	err = m.Unmarshal(&selected)
	if err != nil {
		return Configuration{}, ConfigUnmarshalError{Cause: err}
	}

	cfg := DefaultConfiguration()
	if name := selected.Performance.Name; name != "" {
		p, err := LookupPreset(name)
		if err != nil {
			return Configuration{}, err
		}
		cfg.Performance = Performance{Name: name, Preset: p}
	}

	err = m.Unmarshal(&cfg)
	if err != nil {
		return Configuration{}, ConfigUnmarshalError{Cause: err}
	}
	return cfg, nil
}

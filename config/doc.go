// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config reads the exporter configuration from one or more
// sources and decodes it into plain structs.
//
// Sources are applied in order, so later sources override earlier ones:
//
//	m, err := config.Read(
//	    config.FromYaml(config.NewFileReader(os.DirFS("."), "spool.yaml")),
//	    config.FromEnv("SPOOL_"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	var cfg spool.Configuration
//	err = m.Unmarshal(&cfg)
//
// Struct fields are matched with the "config" tag. Durations may be given
// as strings ("5s") or integer nanoseconds, and any type implementing
// encoding.TextUnmarshaler can be decoded from a string.
package config

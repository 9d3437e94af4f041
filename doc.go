// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package spool exports telemetry logs through a disk buffer.
//
// Span events are turned into log records and appended to batch files
// under a storage directory. A background uploader sends those files to
// an HTTP intake and deletes them once they are delivered. Records
// survive process restarts and network loss for as long as the
// performance preset's retention allows, while disk usage stays within
// its quota.
//
// # Basic Usage
//
//	cfg, err := spool.ReadConfiguration(
//	    config.FromYaml(config.NewFileReader(os.DirFS("."), "spool.yaml")),
//	    config.FromEnv("SPOOL_"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	exp, err := spool.NewLogsExporter(cfg, spool.LogHandler(slog.Default().Handler()))
//	if err != nil {
//	    return err
//	}
//	go exp.Run(ctx)
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
//	defer tp.Shutdown(ctx)
package spool

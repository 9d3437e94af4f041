// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/z5labs/spool"
	"github.com/z5labs/spool/config"
	"github.com/z5labs/spool/internal/try"

	"github.com/spf13/cobra"
)

// EnvPrefix is the prefix of environment variables overriding the
// configuration file, e.g. SPOOL_APIKEY.
const EnvPrefix = "SPOOL_"

func newFlushCmd() *cobra.Command {
	var (
		cfgPath  string
		verbose  bool
		exporter *spool.LogsExporter
	)

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Upload every buffered batch to the configured endpoint",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) (err error) {
			defer try.Recover(&err)

			var srcs []config.Source
			if cfgPath != "" {
				f := config.NewFileReader(os.DirFS(filepath.Dir(cfgPath)), filepath.Base(cfgPath))
				defer f.Close()

				r := config.RenderTextTemplate(f)
				if filepath.Ext(cfgPath) == ".json" {
					srcs = append(srcs, config.FromJson(r))
				} else {
					srcs = append(srcs, config.FromYaml(r))
				}
			}
			srcs = append(srcs, config.FromEnv(EnvPrefix))

			cfg, err := spool.ReadConfiguration(srcs...)
			if err != nil {
				return err
			}

			var opts []spool.Option
			if verbose {
				opts = append(opts, spool.LogHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
			exporter, err = spool.NewLogsExporter(cfg, opts...)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer try.Recover(&err)
			defer func() {
				serr := exporter.Shutdown(cmd.Context())
				if err == nil {
					err = serr
				}
			}()

			delivered, err := exporter.Flush(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d batches from %s\n", delivered, exporter.Dir())
			return err
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a yaml or json configuration file, rendered as a text/template first")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every upload cycle to stderr")
	return cmd
}

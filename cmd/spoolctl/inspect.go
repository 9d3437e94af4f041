// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/z5labs/spool"
	"github.com/z5labs/spool/internal/try"
	"github.com/z5labs/spool/storage"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// UnknownOutputError is returned for an unsupported --output value.
type UnknownOutputError struct {
	Format string
}

// Error implements the [builtin.error] interface.
func (e UnknownOutputError) Error() string {
	return fmt.Sprintf("unknown output format: %s", e.Format)
}

type inspectedFile struct {
	Name      string    `yaml:"name"`
	Created   time.Time `yaml:"created"`
	Size      int64     `yaml:"size"`
	Records   int       `yaml:"records"`
	Corrupted bool      `yaml:"corrupted,omitempty"`
}

type inspection struct {
	Directory string          `yaml:"directory"`
	Files     []inspectedFile `yaml:"files"`
	TotalSize int64           `yaml:"totalSize"`
}

func newInspectCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect DIR",
		Short: "List the batch files buffered under a storage directory",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "text", "yaml":
				return nil
			default:
				return UnknownOutputError{Format: output}
			}
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer try.Recover(&err)

			dir := filepath.Join(args[0], spool.LogsDirectory)
			entries, err := storage.Inspect(dir, storage.JSONArray)
			if err != nil {
				return err
			}

			in := inspection{Directory: dir}
			for _, e := range entries {
				in.TotalSize += e.Size
				in.Files = append(in.Files, inspectedFile{
					Name:      e.Name,
					Created:   e.Created.UTC(),
					Size:      e.Size,
					Records:   max(e.Records, 0),
					Corrupted: e.Corrupted(),
				})
			}

			if output == "yaml" {
				return writeYaml(cmd.OutOrStdout(), in)
			}
			return writeText(cmd.OutOrStdout(), in)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format, text or yaml")
	return cmd
}

func writeYaml(w io.Writer, in inspection) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err := enc.Encode(in)
	if err != nil {
		return err
	}
	return enc.Close()
}

func writeText(w io.Writer, in inspection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCREATED\tSIZE\tRECORDS")
	for _, f := range in.Files {
		records := fmt.Sprint(f.Records)
		if f.Corrupted {
			records = "corrupted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.Name, f.Created.Format(time.RFC3339), f.Size, records)
	}
	fmt.Fprintf(tw, "\t\t%d\t%d files\n", in.TotalSize, len(in.Files))
	return tw.Flush()
}

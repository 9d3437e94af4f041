// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "spoolctl",
		Short:        "Inspect and flush spool storage directories",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newInspectCmd(),
		newFlushCmd(),
	)
	return cmd
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command spoolctl inspects and flushes spool storage directories
// left behind by applications using the logs exporter.
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

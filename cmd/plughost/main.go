// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Plughost signs, verifies, and runs process-isolated plugins. See
// "plughost --help" for the command list.
package main

import (
	"os"

	"github.com/bureau-foundation/plughost/cmd/plughost/commands"
	"github.com/bureau-foundation/plughost/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return commands.Root(os.Stdout).Execute(os.Args[1:])
}

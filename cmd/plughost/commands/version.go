// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/plughost/cmd/plughost/cli"
	"github.com/bureau-foundation/plughost/lib/version"
)

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information and the binary digest",
		Run: func(args []string) error {
			fmt.Fprintf(stdout, "plughost %s\n", version.Full())
			digest, path, err := version.SelfDigest()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "  Binary: %s\n  Digest: %s\n", path, digest)
			return nil
		},
	}
}

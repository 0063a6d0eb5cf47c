// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/plughost/cmd/plughost/cli"
)

func keysCommand(stdout io.Writer) *cli.Command {
	var flags configFlags
	return &cli.Command{
		Name:    "keys",
		Summary: "List the fingerprints of trusted signing keys",
		Usage:   "plughost keys [--config FILE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keys", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 0, "no arguments"); err != nil {
				return err
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			keys, err := cfg.KeySet()
			if err != nil {
				return err
			}
			if keys.Len() == 0 {
				fmt.Fprintln(stdout, "no trusted keys configured")
				return nil
			}
			for _, fingerprint := range keys.Fingerprints() {
				fmt.Fprintln(stdout, fingerprint)
			}
			return nil
		},
	}
}

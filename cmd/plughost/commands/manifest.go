// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/plughost/cmd/plughost/cli"
	"github.com/bureau-foundation/plughost/lib/trust"
)

func manifestCommand(stdout io.Writer) *cli.Command {
	var flags configFlags
	return &cli.Command{
		Name:    "manifest",
		Summary: "List the plugins recorded in a signature manifest",
		Usage:   "plughost manifest [--config FILE] [--manifest FILE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("manifest", pflag.ContinueOnError)
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
			entries, err := flags.manifest(cfg)
			if err != nil {
				return err
			}
			if entries == nil {
				return errors.New("no manifest configured; set manifest in the config or pass --manifest")
			}

			writer := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "NAME\tKEY\tHASH\tPATH")
			for _, name := range entries.Names() {
				entry, _ := entries.Lookup(name)
				fingerprint := "(malformed)"
				if key, err := trust.ParsePublicKey(entry.PublicKey); err == nil {
					fingerprint = trust.Fingerprint(key)
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", name, fingerprint, entry.BinaryHash.String()[:16], entry.Path)
			}
			return writer.Flush()
		},
	}
}

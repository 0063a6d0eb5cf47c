// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/plughost/cmd/plughost/cli"
	"github.com/bureau-foundation/plughost/lib/config"
	"github.com/bureau-foundation/plughost/lib/manifest"
	"github.com/bureau-foundation/plughost/lib/process"
	"github.com/bureau-foundation/plughost/lib/trust"
)

// exitVerifyFailed is the status for a binary that does not match its
// signature, as distinct from an error running the check.
const exitVerifyFailed = 2

func verifyCommand(stdout io.Writer) *cli.Command {
	var flags configFlags
	return &cli.Command{
		Name:    "verify",
		Summary: "Check a plugin binary against its manifest signature",
		Description: `Verify that the binary recorded for NAME in the manifest is unmodified,
that its signing key is in the trusted key set, and that the signature
is valid.

Exits 0 when the binary verifies and 2 when it does not. Any other
failure (unknown plugin, untrusted key, unreadable binary) is an error
and exits 1.`,
		Usage: "plughost verify [--config FILE] [--manifest FILE] NAME",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "exactly one plugin NAME"); err != nil {
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

			ok, err := verifyEntry(cfg, entries, args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(stdout, "%s: binary does not match its signature\n", args[0])
				return &process.ExitError{Code: exitVerifyFailed}
			}
			fmt.Fprintf(stdout, "%s: verified\n", args[0])
			return nil
		},
	}
}

func verifyEntry(cfg *config.Config, entries *manifest.Manifest, name string) (bool, error) {
	entry, err := entries.Lookup(name)
	if err != nil {
		return false, err
	}
	signature, err := entry.PluginSignature()
	if err != nil {
		return false, fmt.Errorf("manifest entry %q: %w", name, err)
	}
	keys, err := cfg.KeySet()
	if err != nil {
		return false, err
	}
	return trust.NewVerifier(keys).Verify(entry.Path, signature)
}

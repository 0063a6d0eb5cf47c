// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/plughost/cmd/plughost/cli"
	"github.com/bureau-foundation/plughost/lib/manifest"
	"github.com/bureau-foundation/plughost/lib/trust"
)

func signCommand(stdout io.Writer) *cli.Command {
	var (
		keyPath      string
		manifestPath string
		name         string
	)
	return &cli.Command{
		Name:    "sign",
		Summary: "Sign a plugin binary into a manifest",
		Description: `Hash a plugin binary, sign the hash with an Ed25519 private key, and
record the result in a signature manifest under the plugin's name.

The manifest is created when it does not exist. An existing entry for
the same name is replaced.`,
		Usage: "plughost sign --key FILE --manifest FILE [--name NAME] BINARY",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sign", pflag.ContinueOnError)
			flagSet.StringVar(&keyPath, "key", "", "private key file written by keygen")
			flagSet.StringVar(&manifestPath, "manifest", "", "manifest file to update")
			flagSet.StringVar(&name, "name", "", "plugin name (default: the binary's base name)")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Sign a build into the deployment manifest",
				Command:     "plughost sign --key release/signing.key --manifest plugins.jsonc bin/thumbnailer",
			},
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "exactly one BINARY"); err != nil {
				return err
			}
			if keyPath == "" || manifestPath == "" {
				return fmt.Errorf("%w: --key and --manifest are required", cli.ErrUsage)
			}
			binary, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			pluginName := name
			if pluginName == "" {
				pluginName = strings.TrimSuffix(filepath.Base(binary), filepath.Ext(binary))
			}

			privateKey, err := trust.LoadPrivateKey(keyPath)
			if err != nil {
				return err
			}
			signature, err := trust.Sign(privateKey, binary)
			if err != nil {
				return err
			}

			entries, err := manifest.LoadOrNew(manifestPath)
			if err != nil {
				return err
			}
			entries.Put(pluginName, binary, signature)
			if err := entries.Save(manifestPath); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "signed %s\n", pluginName)
			fmt.Fprintf(stdout, "  binary:      %s\n", binary)
			fmt.Fprintf(stdout, "  hash:        %s\n", signature.BinaryHash)
			fmt.Fprintf(stdout, "  fingerprint: %s\n", trust.Fingerprint(signature.PublicKey))
			return nil
		},
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/plughost/cmd/plughost/cli"
	"github.com/bureau-foundation/plughost/lib/trust"
)

func keygenCommand(stdout io.Writer) *cli.Command {
	var directory string
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an Ed25519 signing keypair",
		Description: `Generate an Ed25519 keypair for signing plugin binaries.

The private key is written to signing.key (mode 0600) and the public
key to signing.pub, both hex-encoded. Add the public key to the host's
trusted_keys to accept binaries signed with the private key.`,
		Usage: "plughost keygen --dir DIRECTORY",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVar(&directory, "dir", ".", "directory to write the keypair into")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Create the release signing key", Command: "plughost keygen --dir ~/.config/plughost/release"},
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 0, "no arguments"); err != nil {
				return err
			}
			publicKey, privateKey, err := trust.GenerateKeypair()
			if err != nil {
				return err
			}
			if err := trust.SaveKeypair(directory, publicKey, privateKey); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "private key: %s\n", filepath.Join(directory, trust.PrivateKeyFile))
			fmt.Fprintf(stdout, "public key:  %s\n", hex.EncodeToString(publicKey))
			fmt.Fprintf(stdout, "fingerprint: %s\n", trust.Fingerprint([32]byte(publicKey)))
			return nil
		},
	}
}

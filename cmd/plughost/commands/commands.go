// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the plughost command tree.
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/plughost/cmd/plughost/cli"
	"github.com/bureau-foundation/plughost/lib/config"
	"github.com/bureau-foundation/plughost/lib/manifest"
)

// Root returns the plughost command tree. Command results are written
// to stdout; help and logs go to stderr.
func Root(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name: "plughost",
		Description: `plughost: run native plugins as isolated child processes.

Plugins are spawned as separate processes and spoken to over their
stdin/stdout with length-prefixed binary frames. Binaries can be signed
with an Ed25519 key and verified against a trusted key set before they
are ever executed.`,
		Subcommands: []*cli.Command{
			keygenCommand(stdout),
			signCommand(stdout),
			verifyCommand(stdout),
			keysCommand(stdout),
			manifestCommand(stdout),
			callCommand(stdout),
			versionCommand(stdout),
		},
	}
}

// configFlags are shared by every command that reads plughost.yaml.
type configFlags struct {
	configPath   string
	manifestPath string
	verbose      bool
}

func (f *configFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "path to plughost.yaml (default: $"+config.EnvVar+")")
	flagSet.StringVar(&f.manifestPath, "manifest", "", "signature manifest (default: the config's manifest)")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log debug detail")
}

func (f *configFlags) load() (*config.Config, error) {
	if f.configPath == "" {
		return config.Load()
	}
	return config.LoadFile(f.configPath)
}

// manifest loads the manifest named by --manifest or the config. With
// neither set it returns nil and no error.
func (f *configFlags) manifest(cfg *config.Config) (*manifest.Manifest, error) {
	path := f.manifestPath
	if path == "" {
		path = cfg.Manifest
	}
	if path == "" {
		return nil, nil
	}
	loaded, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

func requireArgs(args []string, count int, usage string) error {
	if len(args) != count {
		return fmt.Errorf("%w: expected %s", cli.ErrUsage, usage)
	}
	return nil
}

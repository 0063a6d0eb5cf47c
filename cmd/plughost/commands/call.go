// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/plughost/cmd/plughost/cli"
	"github.com/bureau-foundation/plughost/lib/codec"
	"github.com/bureau-foundation/plughost/lib/config"
	"github.com/bureau-foundation/plughost/lib/ipc"
	"github.com/bureau-foundation/plughost/lib/manifest"
	"github.com/bureau-foundation/plughost/lib/payload"
	"github.com/bureau-foundation/plughost/lib/pluginhost"
	"github.com/bureau-foundation/plughost/lib/trust"
)

type callFlags struct {
	configFlags
	method    string
	raw       string
	jsonValue string
	timeout   string
}

func callCommand(stdout io.Writer) *cli.Command {
	var flags callFlags
	return &cli.Command{
		Name:    "call",
		Summary: "Spawn a configured plugin and make one call",
		Description: `Spawn the plugin NAME from the config, issue a single call, print the
result, and terminate the plugin.

The request is either raw bytes (--raw) or a JSON value (--json) that
is converted to CBOR and wrapped in the configured payload envelope.
With --json the response is unwrapped the same way and printed in CBOR
diagnostic notation; otherwise the response bytes are written as-is.

When the manifest has an entry for NAME, the binary is verified before
it runs. With require_verification set, a plugin without a valid entry
is refused.`,
		Usage: "plughost call [--config FILE] --method METHOD [--raw TEXT | --json VALUE] NAME",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("call", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVarP(&flags.method, "method", "m", "", "method to call")
			flagSet.StringVar(&flags.raw, "raw", "", "request payload as raw text")
			flagSet.StringVar(&flags.jsonValue, "json", "", "request payload as a JSON value")
			flagSet.StringVar(&flags.timeout, "timeout", "", "call timeout (default: the config's call_timeout)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Raw echo", Command: "plughost call --method echo --raw hello echo"},
			{Description: "Structured call", Command: `plughost call --method sum --json '{"values":[1,2,3]}' echo`},
		},
		Run: func(args []string) error {
			if err := requireArgs(args, 1, "exactly one plugin NAME"); err != nil {
				return err
			}
			if flags.method == "" {
				return fmt.Errorf("%w: --method is required", cli.ErrUsage)
			}
			if flags.raw != "" && flags.jsonValue != "" {
				return fmt.Errorf("%w: --raw and --json are mutually exclusive", cli.ErrUsage)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runCall(ctx, stdout, &flags, args[0])
		},
	}
}

func runCall(ctx context.Context, stdout io.Writer, flags *callFlags, name string) error {
	var value any
	if flags.jsonValue != "" {
		decoded, err := decodeJSONValue(flags.jsonValue)
		if err != nil {
			return fmt.Errorf("%w: --json: %v", cli.ErrUsage, err)
		}
		value = decoded
	}

	cfg, err := flags.load()
	if err != nil {
		return err
	}
	request := []byte(flags.raw)
	if flags.jsonValue != "" {
		if request, err = payload.Marshal(value, cfg.PayloadCompression()); err != nil {
			return err
		}
	}
	timeout := cfg.CallTimeoutDuration()
	if flags.timeout != "" {
		timeout, err = time.ParseDuration(flags.timeout)
		if err != nil {
			return fmt.Errorf("%w: --timeout: %v", cli.ErrUsage, err)
		}
	}

	entries, err := flags.manifest(cfg)
	if err != nil {
		return err
	}
	options, path, err := spawnOptions(cfg, entries, name)
	if err != nil {
		return err
	}

	keys, err := cfg.KeySet()
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger(flags.verbose)
	registry := pluginhost.NewRegistry(pluginhost.Config{
		Logger:              logger,
		TerminateGrace:      cfg.TerminateGraceDuration(),
		Verifier:            trust.NewVerifier(keys),
		RequireVerification: cfg.RequireVerification,
		Compression:         cfg.PayloadCompression(),
	})
	defer registry.Close()

	options.Events = func(handle pluginhost.Handle, message ipc.Message) {
		logger.Info("plugin event", "plugin", name, "length", len(message.Payload))
	}
	plugin, err := registry.Open(path, options)
	if err != nil {
		return err
	}
	defer plugin.Close()

	response, err := plugin.Call(ctx, flags.method, request, timeout)
	if err != nil {
		return err
	}
	if flags.jsonValue == "" {
		_, err = stdout.Write(response)
		return err
	}
	return printValue(stdout, response)
}

// spawnOptions resolves NAME to an executable path and spawn options.
// The config's plugins list wins over a manifest path; the manifest
// entry, when present, supplies the signature either way.
func spawnOptions(cfg *config.Config, entries *manifest.Manifest, name string) (pluginhost.SpawnOptions, string, error) {
	options := pluginhost.SpawnOptions{Name: name}
	var path string
	if plugin, ok := cfg.Plugin(name); ok {
		path = plugin.Path
		options.Args = plugin.Args
		options.Env = plugin.Env
	}

	if entries != nil {
		entry, err := entries.Lookup(name)
		switch {
		case err == nil:
			signature, err := entry.PluginSignature()
			if err != nil {
				return options, "", fmt.Errorf("manifest entry %q: %w", name, err)
			}
			options.Signature = &signature
			if path == "" {
				path = entry.Path
			} else if filepath.Clean(path) != filepath.Clean(entry.Path) {
				return options, "", fmt.Errorf("plugin %q: config path %s differs from signed path %s",
					name, path, entry.Path)
			}
		case !errors.Is(err, manifest.ErrUnknownPlugin):
			return options, "", err
		}
	}

	if path == "" {
		return options, "", fmt.Errorf("plugin %q is not in the config or the manifest", name)
	}
	return options, path, nil
}

func printValue(w io.Writer, envelope []byte) error {
	data, err := payload.Unpack(envelope)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if !codec.Valid(data) {
		_, err := w.Write(data)
		return err
	}
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, diagnostic)
	return err
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesNestedSubcommands(t *testing.T) {
	t.Parallel()
	var called string
	var receivedArgs []string
	root := &Command{
		Name: "plughost",
		Subcommands: []*Command{
			{Name: "keys", Run: func(args []string) error { called = "keys"; return nil }},
			{
				Name: "manifest",
				Subcommands: []*Command{{
					Name: "show",
					Run: func(args []string) error {
						called = "manifest show"
						receivedArgs = args
						return nil
					},
				}},
			},
		},
	}

	if err := root.Execute([]string{"manifest", "show", "thumbnailer"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "manifest show" || len(receivedArgs) != 1 || receivedArgs[0] != "thumbnailer" {
		t.Errorf("called %q with %v", called, receivedArgs)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	t.Parallel()
	var configPath string
	var gotArgs []string
	command := &Command{
		Name: "verify",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file")
			return flagSet
		},
		Run: func(args []string) error { gotArgs = args; return nil },
	}
	if err := command.Execute([]string{"--config", "/etc/plughost.yaml", "echo"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if configPath != "/etc/plughost.yaml" || len(gotArgs) != 1 || gotArgs[0] != "echo" {
		t.Errorf("config = %q, args = %v", configPath, gotArgs)
	}
}

func TestExecuteSuggestions(t *testing.T) {
	t.Parallel()
	var help bytes.Buffer
	root := &Command{
		Name:   "plughost",
		Output: &help,
		Subcommands: []*Command{
			{Name: "verify", Run: func(args []string) error { return nil }},
			{
				Name: "call",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("call", pflag.ContinueOnError)
					flagSet.String("method", "", "method name")
					return flagSet
				},
				Run: func(args []string) error { return nil },
			},
		},
	}

	err := root.Execute([]string{"verfy"})
	if !errors.Is(err, ErrUsage) || !strings.Contains(err.Error(), `did you mean "verify"`) {
		t.Errorf("unknown command error = %v", err)
	}
	err = root.Execute([]string{"call", "--methd", "echo"})
	if !errors.Is(err, ErrUsage) || !strings.Contains(err.Error(), "did you mean --method") {
		t.Errorf("unknown flag error = %v", err)
	}
	err = root.Execute(nil)
	if !errors.Is(err, ErrUsage) {
		t.Errorf("missing subcommand error = %v", err)
	}
	if !strings.Contains(help.String(), "Commands:") {
		t.Errorf("help not printed to Output:\n%s", help.String())
	}
}

func TestPrintHelp(t *testing.T) {
	t.Parallel()
	command := &Command{
		Name:        "keygen",
		Description: "Generate an Ed25519 signing keypair.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.String("dir", "", "output directory")
			return flagSet
		},
		Examples: []Example{{Description: "Keys for the release pipeline", Command: "plughost keygen --dir ./keys"}},
	}
	var output bytes.Buffer
	command.PrintHelp(&output)
	for _, fragment := range []string{"Generate an Ed25519", "Usage:\n  keygen [flags]", "--dir", "# Keys for the release pipeline"} {
		if !strings.Contains(output.String(), fragment) {
			t.Errorf("help missing %q:\n%s", fragment, output.String())
		}
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"verify", "verify", 0},
		{"verfy", "verify", 1},
		{"kyes", "keys", 2},
		{"sign", "call", 4},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestNewLoggerHandlerSelection(t *testing.T) {
	t.Parallel()
	var text, structured bytes.Buffer
	newLogger(&text, true, false).Info("plugin started", "plugin", "echo")
	newLogger(&structured, false, false).Info("plugin started", "plugin", "echo")
	if !strings.Contains(text.String(), "plugin=echo") {
		t.Errorf("terminal output = %q, want text handler", text.String())
	}
	if !strings.Contains(structured.String(), `"plugin":"echo"`) {
		t.Errorf("piped output = %q, want JSON handler", structured.String())
	}

	var quiet bytes.Buffer
	newLogger(&quiet, true, false).Debug("hidden")
	if quiet.Len() != 0 {
		t.Error("debug logged without verbose")
	}
}

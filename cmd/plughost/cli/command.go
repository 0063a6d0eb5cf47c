// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the command tree.
type Command struct {
	// Name is the word the user types.
	Name string

	// Summary is the one-line description in the parent's listing.
	Summary string

	// Description is the longer text in the command's own help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags returns a fresh flag set. Nil means the command takes no
	// flags.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	Run func(args []string) error

	// Output receives help text. Nil means os.Stderr.
	Output io.Writer

	parent *Command
}

// Example pairs a command line with a comment for help output.
type Example struct {
	Description string
	Command     string
}

// ErrUsage marks errors caused by how the command was invoked.
var ErrUsage = errors.New("usage error")

// Execute dispatches args down the tree and runs the matching command.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.output())
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			child := c.child(args[0])
			if child == nil {
				return c.unknownCommand(args[0])
			}
			return child.Execute(args[1:])
		}
		if c.Run == nil {
			c.PrintHelp(c.output())
			return fmt.Errorf("%w: subcommand required", ErrUsage)
		}
	}

	positional, err := c.parseFlags(args)
	if errors.Is(err, errHelpShown) {
		return nil
	}
	if err != nil {
		return err
	}
	if c.Run == nil {
		c.PrintHelp(c.output())
		return fmt.Errorf("%s: nothing to run", c.fullName())
	}
	return c.Run(positional)
}

func (c *Command) child(name string) *Command {
	for _, candidate := range c.Subcommands {
		if candidate.Name == name {
			candidate.parent = c
			return candidate
		}
	}
	return nil
}

func (c *Command) unknownCommand(name string) error {
	detail := fmt.Sprintf("unknown command %q", name)
	if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
		detail += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return c.usageError(detail)
}

// parseFlags returns the positional arguments left after the command's
// flags are parsed.
func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	err := flagSet.Parse(args)
	switch {
	case err == nil:
		return flagSet.Args(), nil
	case errors.Is(err, pflag.ErrHelp):
		c.PrintHelp(c.output())
		return nil, errHelpShown
	}

	detail := err.Error()
	if strings.Contains(detail, "unknown flag") {
		if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
			detail += fmt.Sprintf(" (did you mean %s?)", suggestion)
		}
	}
	return nil, c.usageError(detail)
}

func (c *Command) usageError(detail string) error {
	return fmt.Errorf("%w: %s\n\nRun '%s --help' for usage.", ErrUsage, detail, c.fullName())
}

// errHelpShown means --help appeared among the flags and help has been
// printed.
var errHelpShown = errors.New("help shown")

// PrintHelp writes the command's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	text := c.Description
	if text == "" {
		text = c.Summary
	}
	if text != "" {
		fmt.Fprintln(w, text)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())

	if len(c.Subcommands) > 0 {
		fmt.Fprintln(w, "\nCommands:")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, child := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", child.Name, child.Summary)
		}
		table.Flush()
	}

	if c.Flags != nil {
		if usages := c.Flags().FlagUsages(); usages != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usages)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintln(w, "\nExamples:")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintln(w, "  # "+example.Description)
			}
			fmt.Fprintln(w, "  "+example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for details on a command.\n", c.fullName())
	}
}

func (c *Command) usageLine() string {
	switch {
	case c.Usage != "":
		return c.Usage
	case len(c.Subcommands) > 0:
		return c.fullName() + " <command> [flags]"
	default:
		return c.fullName() + " [flags]"
	}
}

func (c *Command) output() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.Output != nil {
			return command.Output
		}
	}
	return os.Stderr
}

func (c *Command) fullName() string {
	names := []string{c.Name}
	for ancestor := c.parent; ancestor != nil; ancestor = ancestor.parent {
		names = append([]string{ancestor.Name}, names...)
	}
	return strings.Join(names, " ")
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command-tree framework behind the plughost
// binary: [Command] values nest into a tree, [Command.Execute] walks
// it, parses pflag flags, and prints help. Mistyped commands and flags
// get a closest-match suggestion.
package cli

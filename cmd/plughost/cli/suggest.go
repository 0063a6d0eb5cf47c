// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance still worth
// suggesting.
const maxSuggestDistance = 3

// suggestCommand returns the sibling command name nearest to unknown,
// or "".
func suggestCommand(unknown string, siblings []*Command) string {
	names := make([]string, len(siblings))
	for index, sibling := range siblings {
		names[index] = sibling.Name
	}
	return nearest(unknown, names)
}

// suggestFlag locates the first flag in args that flagSet does not
// define and returns the nearest defined flag as "--name", or "".
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	var names []string
	flagSet.VisitAll(func(f *pflag.Flag) { names = append(names, f.Name) })

	for _, arg := range args {
		if len(arg) < 2 || arg[0] != '-' {
			continue
		}
		flagName, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if flagSet.Lookup(flagName) != nil || (len(flagName) == 1 && flagSet.ShorthandLookup(flagName) != nil) {
			continue
		}
		if match := nearest(flagName, names); match != "" {
			return "--" + match
		}
		return ""
	}
	return ""
}

func nearest(target string, candidates []string) string {
	match, distance := "", maxSuggestDistance+1
	for _, candidate := range candidates {
		if d := levenshtein(target, candidate); d < distance {
			match, distance = candidate, d
		}
	}
	return match
}

// levenshtein is the edit distance between a and b using a single row
// of the dynamic-programming table.
func levenshtein(a, b string) int {
	source, target := []rune(a), []rune(b)
	row := make([]int, len(target)+1)
	for column := range row {
		row[column] = column
	}
	for _, sourceRune := range source {
		diagonal := row[0]
		row[0]++
		for column, targetRune := range target {
			substitution := diagonal
			if sourceRune != targetRune {
				substitution++
			}
			diagonal = row[column+1]
			row[column+1] = min(row[column+1]+1, row[column]+1, substitution)
		}
	}
	return row[len(target)]
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"os"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/bureau-foundation/plughost/lib/binhash"
)

func TestCommitFromSettings(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		settings []debug.BuildSetting
		want     string
	}{
		{"no vcs", nil, "unknown"},
		{
			"clean tree",
			[]debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef0123"}, {Key: "vcs.modified", Value: "false"}},
			"0123456789ab",
		},
		{
			"dirty tree",
			[]debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}, {Key: "vcs.modified", Value: "true"}},
			"abc123-dirty",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := commitFromSettings(test.settings); got != test.want {
				t.Errorf("commitFromSettings = %q, want %q", got, test.want)
			}
		})
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	t.Parallel()
	full := Full()
	if !strings.HasPrefix(full, Version+" (") || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q", full)
	}
}

func TestSelfDigestMatchesExecutable(t *testing.T) {
	t.Parallel()
	digest, path, err := SelfDigest()
	if err != nil {
		t.Fatalf("SelfDigest: %v", err)
	}
	executable, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	if path != executable {
		t.Errorf("path = %q, want %q", path, executable)
	}
	want, err := binhash.HashFile(executable)
	if err != nil {
		t.Fatal(err)
	}
	if digest != want {
		t.Errorf("digest = %s, want %s", digest, want)
	}
}

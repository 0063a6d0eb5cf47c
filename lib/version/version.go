// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/bureau-foundation/plughost/lib/binhash"
)

// These variables are set via -ldflags at build time.
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit(), BuildTime)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Commit returns the injected git commit, or the toolchain-stamped VCS
// revision (shortened, with a -dirty suffix for modified trees).
func Commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return GitCommit
	}
	return commitFromSettings(info.Settings)
}

func commitFromSettings(settings []debug.BuildSetting) string {
	revision, modified := "", false
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return "unknown"
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if modified {
		revision += "-dirty"
	}
	return revision
}

// SelfDigest returns the digest and path of the running executable.
// On Linux os.Executable reads /proc/self/exe, which names the
// original binary even if it has since been replaced on disk.
func SelfDigest() (binhash.Digest, string, error) {
	executable, err := os.Executable()
	if err != nil {
		return binhash.Digest{}, "", fmt.Errorf("resolving own executable path: %w", err)
	}
	digest, err := binhash.HashFile(executable)
	if err != nil {
		return binhash.Digest{}, "", fmt.Errorf("hashing own binary: %w", err)
	}
	return digest, executable, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for plughost
// binaries.
//
// Three package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// When GitCommit is not injected, [Info] falls back to the VCS
// revision the Go toolchain stamped into the binary, if any.
//
// [SelfDigest] hashes the running executable the same way plugin
// binaries are hashed for signing, so a host can report exactly which
// build it is.
package version

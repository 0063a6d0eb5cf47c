// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes the SHA-256 digest of a plugin binary on
// disk. The digest is what a plugin signature covers: lib/trust signs
// and verifies the 32 digest bytes, never the file itself.
package binhash

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trust decides whether a plugin binary may run natively.
//
// A [PluginSignature] binds three values: the SHA-256 digest of the
// binary, the Ed25519 public key of whoever signed it, and the
// signature over the digest bytes. [Verifier.Verify] checks them in a
// fixed order:
//
//  1. Hash the binary. A digest mismatch returns false, with no error
//     and no signature check.
//  2. Look up the public key in the [KeySet]. An unknown key returns
//     [ErrUntrustedKey]; it points at trust store configuration rather
//     than at a bad binary, so it is reported as an error.
//  3. Verify the signature. The result is the verification result.
//
// A KeySet is append-only and constructed explicitly; there is no
// process-wide trust store.
package trust

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"crypto/ed25519"
	"fmt"

	"github.com/bureau-foundation/plughost/lib/binhash"
)

// PluginSignature is the signed manifest entry for one plugin binary.
type PluginSignature struct {
	PublicKey  [ed25519.PublicKeySize]byte
	Signature  [ed25519.SignatureSize]byte
	BinaryHash binhash.Digest
}

// Verifier checks plugin binaries against a KeySet.
type Verifier struct {
	keys *KeySet

	// verify is ed25519.Verify outside tests.
	verify func(publicKey ed25519.PublicKey, message, signature []byte) bool
}

// NewVerifier returns a Verifier backed by keys. The KeySet is shared,
// not copied: keys added later are honored.
func NewVerifier(keys *KeySet) *Verifier {
	return &Verifier{keys: keys, verify: ed25519.Verify}
}

// Keys returns the KeySet the Verifier consults.
func (v *Verifier) Keys() *KeySet { return v.keys }

// Verify reports whether the binary at path is authentic under
// signature. It returns false for a digest mismatch or a bad
// signature, ErrUntrustedKey for a correct digest signed by an unknown
// key, and a wrapped I/O error if the binary cannot be read.
func (v *Verifier) Verify(path string, signature PluginSignature) (bool, error) {
	digest, err := binhash.HashFile(path)
	if err != nil {
		return false, err
	}
	if digest != signature.BinaryHash {
		return false, nil
	}
	if !v.keys.Contains(signature.PublicKey) {
		return false, fmt.Errorf("%w: %s", ErrUntrustedKey, Fingerprint(signature.PublicKey))
	}
	return v.verify(signature.PublicKey[:], digest[:], signature.Signature[:]), nil
}

// Sign hashes the binary at path and signs the digest with
// privateKey. The result is what a packaging step writes into a
// manifest.
func Sign(privateKey ed25519.PrivateKey, path string) (PluginSignature, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return PluginSignature{}, fmt.Errorf("trust: private key is %d bytes, want %d", len(privateKey), ed25519.PrivateKeySize)
	}
	digest, err := binhash.HashFile(path)
	if err != nil {
		return PluginSignature{}, err
	}

	var signature PluginSignature
	signature.BinaryHash = digest
	copy(signature.PublicKey[:], privateKey.Public().(ed25519.PublicKey))
	copy(signature.Signature[:], ed25519.Sign(privateKey, digest[:]))
	return signature, nil
}

// ParsePublicKey decodes a 64-character hex public key.
func ParsePublicKey(text string) ([ed25519.PublicKeySize]byte, error) {
	var key [ed25519.PublicKeySize]byte
	if err := decodeFixedHex(text, key[:]); err != nil {
		return key, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return key, nil
}

// ParseSignature decodes a 128-character hex signature.
func ParseSignature(text string) ([ed25519.SignatureSize]byte, error) {
	var signature [ed25519.SignatureSize]byte
	if err := decodeFixedHex(text, signature[:]); err != nil {
		return signature, fmt.Errorf("trust: parsing signature: %w", err)
	}
	return signature, nil
}

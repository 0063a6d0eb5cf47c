// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"

	"filippo.io/edwards25519"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/ssh"
)

var (
	// ErrMalformedKey is returned when bytes offered as a public key do
	// not encode a valid Ed25519 point.
	ErrMalformedKey = errors.New("trust: malformed public key")

	// ErrUntrustedKey is returned by Verify when a signature names a
	// key that is not in the KeySet.
	ErrUntrustedKey = errors.New("trust: public key is not trusted")
)

// KeySet is the set of Ed25519 public keys an operator has approved to
// sign plugin binaries. Keys can be added but not removed. Safe for
// concurrent use.
type KeySet struct {
	mu   sync.RWMutex
	keys map[[ed25519.PublicKeySize]byte]struct{}
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[[ed25519.PublicKeySize]byte]struct{})}
}

// Add admits a raw 32-byte Ed25519 public key. The bytes must decode
// to a point on the curve; anything else fails with ErrMalformedKey
// and leaves the set unchanged.
func (s *KeySet) Add(raw []byte) error {
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrMalformedKey, len(raw), ed25519.PublicKeySize)
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	var key [ed25519.PublicKeySize]byte
	copy(key[:], raw)
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// AddHex admits a key given as 64 hex characters.
func (s *KeySet) AddHex(text string) error {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return s.Add(raw)
}

// AddAuthorizedKey admits a key in OpenSSH authorized_keys format
// ("ssh-ed25519 AAAA... comment"), so operators can reuse existing
// SSH signing keys. Other key types are rejected.
func (s *KeySet) AddAuthorizedKey(line []byte) error {
	parsed, _, _, _, err := ssh.ParseAuthorizedKey(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if parsed.Type() != ssh.KeyAlgoED25519 {
		return fmt.Errorf("%w: key type %s, want %s", ErrMalformedKey, parsed.Type(), ssh.KeyAlgoED25519)
	}
	cryptoKey, ok := parsed.(ssh.CryptoPublicKey)
	if !ok {
		return fmt.Errorf("%w: cannot extract %s key", ErrMalformedKey, parsed.Type())
	}
	publicKey, ok := cryptoKey.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("%w: unexpected key representation", ErrMalformedKey)
	}
	return s.Add(publicKey)
}

// Contains reports whether key is trusted.
func (s *KeySet) Contains(key [ed25519.PublicKeySize]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of trusted keys.
func (s *KeySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Fingerprints returns the fingerprint of every trusted key, sorted.
func (s *KeySet) Fingerprints() []string {
	s.mu.RLock()
	fingerprints := make([]string, 0, len(s.keys))
	for key := range s.keys {
		fingerprints = append(fingerprints, Fingerprint(key))
	}
	s.mu.RUnlock()
	slices.Sort(fingerprints)
	return fingerprints
}

// fingerprintDomainKey separates key fingerprints from any other
// BLAKE3 use of the same 32 bytes.
var fingerprintDomainKey = [32]byte{
	'p', 'l', 'u', 'g', 'h', 'o', 's', 't', '.', 't', 'r', 'u', 's', 't', '.',
	'k', 'e', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns a short identifier for a public key: the first
// 16 bytes of its keyed BLAKE3 hash, hex encoded. Used in logs and CLI
// output where the full key is noise.
func Fingerprint(key [ed25519.PublicKeySize]byte) string {
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic("trust: fingerprint domain key: " + err.Error())
	}
	hasher.Write(key[:])
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

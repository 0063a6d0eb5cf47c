// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Signing key file names within a key directory.
const (
	PrivateKeyFile = "signing.key"
	PublicKeyFile  = "signing.pub"
)

// GenerateKeypair creates a new Ed25519 signing keypair.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return publicKey, privateKey, nil
}

// SaveKeypair writes the keypair into directory as hex text: the
// private key readable only by its owner, the public key world
// readable so it can be copied into trust configuration.
func SaveKeypair(directory string, publicKey ed25519.PublicKey, privateKey ed25519.PrivateKey) error {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("creating key directory %s: %w", directory, err)
	}
	privatePath := filepath.Join(directory, PrivateKeyFile)
	if err := os.WriteFile(privatePath, []byte(hex.EncodeToString(privateKey)+"\n"), 0600); err != nil {
		return fmt.Errorf("writing private key to %s: %w", privatePath, err)
	}
	publicPath := filepath.Join(directory, PublicKeyFile)
	if err := os.WriteFile(publicPath, []byte(hex.EncodeToString(publicKey)+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key to %s: %w", publicPath, err)
	}
	return nil
}

// LoadPrivateKey reads a hex private key written by SaveKeypair.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	key := make([]byte, ed25519.PrivateKeySize)
	if err := decodeFixedHex(strings.TrimSpace(string(data)), key); err != nil {
		return nil, fmt.Errorf("private key %s: %w", path, err)
	}
	return ed25519.PrivateKey(key), nil
}

// LoadPublicKeyFile reads a trusted key file. The file holds either a
// hex key or an OpenSSH ssh-ed25519 line; each non-empty, non-comment
// line is added to keys.
func LoadPublicKeyFile(keys *KeySet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading trusted key file: %w", err)
	}
	for number, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := AddKeyText(keys, line); err != nil {
			return fmt.Errorf("%s:%d: %w", path, number+1, err)
		}
	}
	return nil
}

// AddKeyText admits a key written either as hex or as an OpenSSH
// authorized_keys line.
func AddKeyText(keys *KeySet, text string) error {
	if strings.HasPrefix(text, "ssh-") {
		return keys.AddAuthorizedKey([]byte(text))
	}
	return keys.AddHex(text)
}

func decodeFixedHex(text string, into []byte) error {
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return err
	}
	if len(decoded) != len(into) {
		return fmt.Errorf("%d bytes, want %d", len(decoded), len(into))
	}
	copy(into, decoded)
	return nil
}

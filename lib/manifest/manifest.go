// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest reads and writes plugin trust manifests.
//
// A manifest is a JSONC file (JSON plus comments and trailing commas)
// mapping plugin names to the signature triple lib/trust verifies:
//
//	{
//	  // Signed by the release key.
//	  "plugins": {
//	    "thumbnailer": {
//	      "path": "/opt/plugins/thumbnailer",
//	      "public_key": "<64 hex>",
//	      "signature": "<128 hex>",
//	      "binary_hash": "<64 hex>",
//	    },
//	  },
//	}
//
// Save writes plain JSON; comments in a hand-edited manifest are not
// preserved across a Save.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/plughost/lib/binhash"
	"github.com/bureau-foundation/plughost/lib/trust"
)

// ErrUnknownPlugin is returned by Lookup for a name with no entry.
var ErrUnknownPlugin = errors.New("manifest: no entry for plugin")

// Manifest is the decoded manifest file.
type Manifest struct {
	Plugins map[string]Entry `json:"plugins"`
}

// Entry is one plugin's signed record. Keys and signatures are hex.
type Entry struct {
	Path       string         `json:"path"`
	PublicKey  string         `json:"public_key"`
	Signature  string         `json:"signature"`
	BinaryHash binhash.Digest `json:"binary_hash"`
}

// PluginSignature decodes the entry's hex fields.
func (e Entry) PluginSignature() (trust.PluginSignature, error) {
	publicKey, err := trust.ParsePublicKey(e.PublicKey)
	if err != nil {
		return trust.PluginSignature{}, err
	}
	signature, err := trust.ParseSignature(e.Signature)
	if err != nil {
		return trust.PluginSignature{}, err
	}
	return trust.PluginSignature{
		PublicKey:  publicKey,
		Signature:  signature,
		BinaryHash: e.BinaryHash,
	}, nil
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{Plugins: make(map[string]Entry)}
}

// Parse decodes JSONC manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	manifest := New()
	if err := json.Unmarshal(jsonc.ToJSON(data), manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if manifest.Plugins == nil {
		manifest.Plugins = make(map[string]Entry)
	}
	return manifest, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	manifest, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

// LoadOrNew is Load, except a missing file yields an empty manifest.
func LoadOrNew(path string) (*Manifest, error) {
	manifest, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	return manifest, err
}

// Save writes the manifest to path through a temporary file and
// rename, so a reader never sees a partial manifest.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')

	temporary, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("creating temporary manifest: %w", err)
	}
	defer os.Remove(temporary.Name())
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Chmod(temporary.Name(), 0644); err != nil {
		return fmt.Errorf("setting manifest mode: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("installing manifest %s: %w", path, err)
	}
	return nil
}

// Lookup returns the entry for name.
func (m *Manifest) Lookup(name string) (Entry, error) {
	entry, ok := m.Plugins[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w %q", ErrUnknownPlugin, name)
	}
	return entry, nil
}

// Put adds or replaces the entry for name.
func (m *Manifest) Put(name, path string, signature trust.PluginSignature) {
	if m.Plugins == nil {
		m.Plugins = make(map[string]Entry)
	}
	m.Plugins[name] = Entry{
		Path:       path,
		PublicKey:  hex.EncodeToString(signature.PublicKey[:]),
		Signature:  hex.EncodeToString(signature.Signature[:]),
		BinaryHash: signature.BinaryHash,
	}
}

// Names returns the plugin names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Plugins))
	for name := range m.Plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

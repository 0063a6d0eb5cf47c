// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/plughost/lib/trust"
)

func signedBinary(t *testing.T) (string, trust.PluginSignature) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thumbnailer")
	if err := os.WriteFile(path, []byte("thumbnailer v3"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, privateKey, err := trust.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	signature, err := trust.Sign(privateKey, path)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return path, signature
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	binaryPath, signature := signedBinary(t)
	manifestPath := filepath.Join(t.TempDir(), "plugins.jsonc")

	manifest := New()
	manifest.Put("thumbnailer", binaryPath, signature)
	if err := manifest.Save(manifestPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(manifestPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry, err := loaded.Lookup("thumbnailer")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry.Path != binaryPath {
		t.Errorf("Path = %q, want %q", entry.Path, binaryPath)
	}
	decoded, err := entry.PluginSignature()
	if err != nil {
		t.Fatalf("PluginSignature: %v", err)
	}
	if decoded != signature {
		t.Error("decoded signature differs from the one stored")
	}
}

func TestParseAcceptsCommentsAndTrailingCommas(t *testing.T) {
	t.Parallel()
	_, signature := signedBinary(t)
	manifest := New()
	manifest.Put("echo", "/opt/echo", signature)
	entry := manifest.Plugins["echo"]

	source := `{
	  // Release key, rotated 2026-06.
	  "plugins": {
	    "echo": {
	      "path": "/opt/echo",
	      "public_key": "` + entry.PublicKey + `",
	      "signature": "` + entry.Signature + `",
	      /* hash of the stripped binary */
	      "binary_hash": "` + entry.BinaryHash.String() + `",
	    },
	  },
	}`
	parsed, err := Parse([]byte(source))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := parsed.Plugins["echo"]; got != entry {
		t.Errorf("entry = %+v, want %+v", got, entry)
	}
}

func TestLookupUnknownPlugin(t *testing.T) {
	t.Parallel()
	_, err := New().Lookup("missing")
	if !errors.Is(err, ErrUnknownPlugin) {
		t.Fatalf("Lookup error = %v, want ErrUnknownPlugin", err)
	}
}

func TestParseRejectsBadDigest(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`{"plugins": {"x": {"binary_hash": "abc"}}}`))
	if err == nil || !strings.Contains(err.Error(), "digest") {
		t.Fatalf("Parse error = %v, want digest error", err)
	}
}

func TestEntryWithBadKeyFails(t *testing.T) {
	t.Parallel()
	entry := Entry{PublicKey: "00", Signature: strings.Repeat("00", 64)}
	if _, err := entry.PluginSignature(); !errors.Is(err, trust.ErrMalformedKey) {
		t.Errorf("PluginSignature error = %v, want ErrMalformedKey", err)
	}
}

func TestLoadOrNewMissingFile(t *testing.T) {
	t.Parallel()
	manifest, err := LoadOrNew(filepath.Join(t.TempDir(), "absent.jsonc"))
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	if len(manifest.Names()) != 0 {
		t.Errorf("Names = %v, want empty", manifest.Names())
	}
}

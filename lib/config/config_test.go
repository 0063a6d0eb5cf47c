// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/bureau-foundation/plughost/lib/payload"
	"github.com/bureau-foundation/plughost/lib/trust"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plughost.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if cfg.Environment != Development {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default does not validate: %v", err)
	}
	if cfg.CallTimeoutDuration() != 30*time.Second {
		t.Errorf("CallTimeout = %s, want 30s", cfg.CallTimeoutDuration())
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvVar, "")
	_, err := Load()
	if err == nil || !strings.HasPrefix(err.Error(), EnvVar+" environment variable not set") {
		t.Fatalf("Load error = %v", err)
	}
}

func TestLoadFromEnvironmentVariable(t *testing.T) {
	path := writeConfig(t, "call_timeout: 2s\n")
	t.Setenv(EnvVar, path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CallTimeoutDuration() != 2*time.Second {
		t.Errorf("CallTimeout = %s, want 2s", cfg.CallTimeoutDuration())
	}
}

func TestLoadFileFullConfig(t *testing.T) {
	t.Setenv("PLUGIN_ROOT", "/opt/plugins")
	path := writeConfig(t, `
environment: staging
manifest: ${PLUGIN_ROOT}/manifest.jsonc
call_timeout: 10s
terminate_grace: 1s
compression: zstd
plugins:
  - name: thumbnailer
    path: ${PLUGIN_ROOT}/thumbnailer
    args: [--quality, "80"]
    env:
      THUMB_CACHE: /tmp/thumbs
  - name: indexer
    path: ${MISSING_ROOT:-/usr/lib/plughost}/indexer
staging:
  call_timeout: 45s
  require_verification: true
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Manifest != "/opt/plugins/manifest.jsonc" {
		t.Errorf("Manifest = %q", cfg.Manifest)
	}
	if cfg.CallTimeoutDuration() != 45*time.Second {
		t.Errorf("staging override not applied: CallTimeout = %s", cfg.CallTimeout)
	}
	if !cfg.RequireVerification {
		t.Error("staging require_verification override not applied")
	}
	if cfg.TerminateGraceDuration() != time.Second {
		t.Errorf("TerminateGrace = %s", cfg.TerminateGrace)
	}
	if cfg.PayloadCompression() != payload.Zstd {
		t.Errorf("Compression = %s", cfg.Compression)
	}

	thumbnailer, ok := cfg.Plugin("thumbnailer")
	if !ok {
		t.Fatal("thumbnailer not found")
	}
	if thumbnailer.Path != "/opt/plugins/thumbnailer" || len(thumbnailer.Args) != 2 || thumbnailer.Env["THUMB_CACHE"] != "/tmp/thumbs" {
		t.Errorf("thumbnailer = %+v", thumbnailer)
	}
	indexer, _ := cfg.Plugin("indexer")
	if indexer.Path != "/usr/lib/plughost/indexer" {
		t.Errorf("default expansion: indexer.Path = %q", indexer.Path)
	}
	if _, ok := cfg.Plugin("absent"); ok {
		t.Error("Plugin(absent) found an entry")
	}
}

func TestProductionForcesVerification(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
environment: production
manifest: /etc/plughost/manifest.jsonc
require_verification: false
production:
  require_verification: false
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !cfg.RequireVerification {
		t.Error("production must require verification")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Environment = "qa"
	cfg.CallTimeout = "soon"
	cfg.TerminateGrace = "0s"
	cfg.Compression = "gzip"
	cfg.RequireVerification = true
	cfg.Plugins = []PluginConfig{
		{Name: "a", Path: "/a"},
		{Name: "a", Path: "/a2"},
		{Name: "", Path: "/b"},
		{Name: "c"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate succeeded")
	}
	for _, fragment := range []string{
		"invalid environment",
		"call_timeout",
		"terminate_grace must be positive",
		"compression",
		"manifest is required",
		`duplicate name "a"`,
		"plugins[2]: name is required",
		"plugins[3] (c): path is required",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q missing %q", err, fragment)
		}
	}
}

func TestLoadFileRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := LoadFile(writeConfig(t, "call_timeout: forever\n")); err == nil {
		t.Error("LoadFile accepted an invalid duration")
	}
	if _, err := LoadFile(writeConfig(t, "plugins: {not: a list}\n")); err == nil {
		t.Error("LoadFile accepted a malformed document")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile(missing) = %v, want os.ErrNotExist", err)
	}
}

func TestKeySet(t *testing.T) {
	t.Parallel()
	hexKey, _, err := trust.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	sshKey, _, err := trust.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	fileKey, _, err := trust.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	sshPublic, err := ssh.NewPublicKey(sshKey)
	if err != nil {
		t.Fatalf("ssh.NewPublicKey: %v", err)
	}
	keyFile := filepath.Join(t.TempDir(), "release.pub")
	if err := os.WriteFile(keyFile, []byte("# release signing key\n"+hex.EncodeToString(fileKey)+"\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := Default()
	cfg.TrustedKeys = []string{
		hex.EncodeToString(hexKey),
		strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPublic))),
	}
	cfg.TrustedKeyFiles = []string{keyFile}

	keys, err := cfg.KeySet()
	if err != nil {
		t.Fatalf("KeySet: %v", err)
	}
	if keys.Len() != 3 {
		t.Errorf("Len = %d, want 3", keys.Len())
	}
	for _, key := range [][]byte{hexKey, sshKey, fileKey} {
		if !keys.Contains([32]byte(key)) {
			t.Errorf("key %x not trusted", key)
		}
	}

	cfg.TrustedKeys = append(cfg.TrustedKeys, "abcd")
	if _, err := cfg.KeySet(); !errors.Is(err, trust.ErrMalformedKey) {
		t.Errorf("KeySet with bad key = %v, want ErrMalformedKey", err)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBinary(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin")
	if err := os.WriteFile(path, content, 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestHashFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content []byte
	}{
		{"small", []byte("hello, plugin")},
		{"empty", nil},
		// Larger than io.Copy's buffer, so hashing spans several reads.
		{"large", []byte(strings.Repeat("0123456789abcdef", 16*1024))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := HashFile(writeBinary(t, test.content))
			if err != nil {
				t.Fatalf("HashFile: %v", err)
			}
			if want := Digest(sha256.Sum256(test.content)); got != want {
				t.Errorf("HashFile = %s, want %s", got, want)
			}
		})
	}
}

func TestHashFileNonexistent(t *testing.T) {
	t.Parallel()
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("HashFile should fail for a nonexistent file")
	}
}

func TestHashFileChangesWithOneByte(t *testing.T) {
	t.Parallel()
	original, err := HashFile(writeBinary(t, []byte("binary-v1")))
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	tampered, err := HashFile(writeBinary(t, []byte("binary-v2")))
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if original == tampered {
		t.Error("digests of different content are equal")
	}
}

func TestDigestTextRoundTrip(t *testing.T) {
	t.Parallel()
	digest := Sum([]byte("round trip"))
	text, err := digest.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if len(text) != 2*Size {
		t.Errorf("text length = %d, want %d", len(text), 2*Size)
	}
	var parsed Digest
	if err := parsed.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if parsed != digest {
		t.Errorf("parsed = %s, want %s", parsed, digest)
	}
	if digest.IsZero() || !(Digest{}).IsZero() {
		t.Error("IsZero is wrong")
	}
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	t.Parallel()
	for _, input := range []string{
		"",
		"not-hex",
		strings.Repeat("ab", Size-1),
		strings.Repeat("ab", Size+1),
	} {
		if _, err := ParseDigest(input); err == nil {
			t.Errorf("ParseDigest(%q) succeeded", input)
		}
	}
}

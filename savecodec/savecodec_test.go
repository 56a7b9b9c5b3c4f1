// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package savecodec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// Captured from a real save export.
const knownSave = "$00seJwrLi0GAAK5AVw=$e"

var knownRaw = []byte{7, 29, 22}

func TestDecodeKnownSave(t *testing.T) {
	version, raw, err := Decode(knownSave)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}
	if !bytes.Equal(raw, knownRaw) {
		t.Errorf("raw = %v, want %v", raw, knownRaw)
	}
}

func TestDecodeTolerantFraming(t *testing.T) {
	// Surrounding whitespace is common when saves travel through chat or
	// forum posts.
	if _, _, err := Decode("  " + knownSave + "\n"); err != nil {
		t.Errorf("Decode() with surrounding whitespace error = %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		save string
		want error
	}{
		{"empty", "", ErrBadFrame},
		{"no frame", "eJwrLi0GAAK5AVw=", ErrBadFrame},
		{"one digit version", "$0seJwrLi0GAAK5AVw=$e", ErrBadFrame},
		{"missing trailer", "$00seJwrLi0GAAK5AVw=", ErrBadFrame},
		{"bad base64", "$00s!!!$e", ErrBadBase64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(tt.save); !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeCorruptDeflate(t *testing.T) {
	// Valid base64 that is not a zlib stream.
	if _, _, err := Decode("$00sAAAA$e"); err == nil {
		t.Errorf("Decode() succeeded on a non-zlib payload")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		version uint16
	}{
		{"known payload", knownRaw, 0},
		{"empty payload", []byte{}, 0},
		{"versioned", []byte{1, 2, 3, 4, 5}, 27},
		{"key length boundary", bytes.Repeat([]byte{0xAB}, len(cipherKey)*2+3), 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			save, err := Encode(tt.raw, tt.version)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !strings.HasPrefix(save, "$") || !strings.HasSuffix(save, "$e") {
				t.Fatalf("Encode() = %q, not framed", save)
			}
			version, raw, err := Decode(save)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if version != tt.version {
				t.Errorf("version = %d, want %d", version, tt.version)
			}
			if !bytes.Equal(raw, tt.raw) {
				t.Errorf("raw = %v, want %v", raw, tt.raw)
			}
		})
	}
}

func TestEncodeRejectsWideVersion(t *testing.T) {
	if _, err := Encode([]byte{1}, 100); err == nil {
		t.Errorf("Encode() accepted a version that cannot be framed in two digits")
	}
}

func TestChecksum(t *testing.T) {
	payload := []byte{7, 29, 22, 0, 0, 1}

	raw := AppendChecksum(payload)
	if len(raw) != len(payload)+4 {
		t.Fatalf("AppendChecksum() length = %d, want %d", len(raw), len(payload)+4)
	}

	got, err := SplitChecksum(raw)
	if err != nil {
		t.Fatalf("SplitChecksum() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("SplitChecksum() = %v, want %v", got, payload)
	}
}

func TestChecksumErrors(t *testing.T) {
	raw := AppendChecksum([]byte{7, 29, 22})

	corrupt := append([]byte(nil), raw...)
	corrupt[0] ^= 0xFF
	if _, err := SplitChecksum(corrupt); !errors.Is(err, ErrChecksum) {
		t.Errorf("SplitChecksum() on corrupt payload error = %v, want ErrChecksum", err)
	}

	if _, err := SplitChecksum([]byte{1, 2}); !errors.Is(err, ErrChecksum) {
		t.Errorf("SplitChecksum() on short record error = %v, want ErrChecksum", err)
	}
}

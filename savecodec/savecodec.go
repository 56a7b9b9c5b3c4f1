// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

// Package savecodec converts between the textual save-string envelope and
// the raw binary record it carries. A save string is
//
//	$NNs<base64>$e
//
// where NN is the two-digit format version and the payload is the raw
// record XORed with a repeating keystream, deflated with zlib, then
// base64-encoded. The trailing four bytes of a raw record are a big-endian
// IEEE CRC32 of everything before them.
package savecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Keystream for the XOR cipher applied to the raw record.
const cipherKey = "therealmisalie"

// saveFrame extracts the format version (first group) and the payload
// (second group) from a save string.
var saveFrame = regexp.MustCompile(`^\$([0-9]{2})s(.*)\$e$`)

var (
	ErrBadFrame  = errors.New("savecodec: save string not in a known format")
	ErrBadBase64 = errors.New("savecodec: save data not valid base64")
	ErrChecksum  = errors.New("savecodec: checksum mismatch")
)

// Decode unwraps a save string into its format version and raw record
// bytes (checksum trailer included, when the save carries one).
func Decode(save string) (version uint16, raw []byte, err error) {
	m := saveFrame.FindStringSubmatch(strings.TrimSpace(save))
	if m == nil {
		return 0, nil, ErrBadFrame
	}
	v, _ := strconv.ParseUint(m[1], 10, 16)

	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return 0, nil, ErrBadBase64
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("savecodec: inflate: %w", err)
	}
	defer zr.Close()
	raw, err = io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("savecodec: inflate: %w", err)
	}

	applyKeystream(raw)
	return uint16(v), raw, nil
}

// Encode wraps raw record bytes into a save string for the given format
// version. Versions above 99 cannot be framed with a two-digit prefix.
func Encode(raw []byte, version uint16) (string, error) {
	if version > 99 {
		return "", fmt.Errorf("savecodec: version %d does not fit the two-digit frame", version)
	}

	enc := make([]byte, len(raw))
	copy(enc, raw)
	applyKeystream(enc)

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, 6)
	if err != nil {
		return "", fmt.Errorf("savecodec: deflate: %w", err)
	}
	if _, err := zw.Write(enc); err != nil {
		return "", fmt.Errorf("savecodec: deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("savecodec: deflate: %w", err)
	}

	return fmt.Sprintf("$%02ds%s$e", version, base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// AppendChecksum returns payload with its big-endian CRC32 trailer.
func AppendChecksum(payload []byte) []byte {
	sum := crc32.ChecksumIEEE(payload)
	return append(payload, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

// SplitChecksum verifies and strips the CRC32 trailer of a raw record.
func SplitChecksum(raw []byte) ([]byte, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("savecodec: record too short for a checksum trailer: %w", ErrChecksum)
	}
	payload, trailer := raw[:len(raw)-4], raw[len(raw)-4:]
	want := uint32(trailer[0])<<24 | uint32(trailer[1])<<16 | uint32(trailer[2])<<8 | uint32(trailer[3])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, fmt.Errorf("savecodec: computed %08x, trailer says %08x: %w", got, want, ErrChecksum)
	}
	return payload, nil
}

func applyKeystream(data []byte) {
	for i := range data {
		data[i] ^= cipherKey[i%len(cipherKey)]
	}
}

// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

// Package saveformat ties the engine to the shipped save layout: it embeds
// the versioned record schema and composes it with the save-string
// envelope and checksum trailer.
package saveformat

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/savetools/binformat/savecodec"
	"github.com/savetools/binformat/schema"
)

//go:embed save.format.yaml
var formatSrc []byte

var (
	formatOnce   sync.Once
	formatSchema *schema.Schema
	formatErr    error
)

// Format returns the compiled save layout. The schema is loaded once and
// shared; it is immutable and safe for concurrent use.
func Format() (*schema.Schema, error) {
	formatOnce.Do(func() {
		formatSchema, formatErr = schema.Load(formatSrc)
	})
	return formatSchema, formatErr
}

// Decode unwraps a save string and decodes the record it carries. The
// CRC32 trailer is verified and stripped before the record is parsed.
func Decode(save string) (map[string]any, error) {
	_, raw, err := savecodec.Decode(save)
	if err != nil {
		return nil, err
	}
	payload, err := savecodec.SplitChecksum(raw)
	if err != nil {
		return nil, err
	}
	s, err := Format()
	if err != nil {
		return nil, err
	}
	return s.Decode(payload)
}

// Encode serializes a record, appends its checksum, and wraps it into a
// save string. The envelope's version prefix comes from the record's
// save_version field.
func Encode(record map[string]any) (string, error) {
	s, err := Format()
	if err != nil {
		return "", err
	}
	raw, err := s.Encode(record)
	if err != nil {
		return "", err
	}
	version, err := recordVersion(record)
	if err != nil {
		return "", err
	}
	return savecodec.Encode(savecodec.AppendChecksum(raw), version)
}

func recordVersion(record map[string]any) (uint16, error) {
	switch v := record["save_version"].(type) {
	case uint64:
		return uint16(v), nil
	case int64:
		return uint16(v), nil
	case int:
		return uint16(v), nil
	case float64:
		return uint16(v), nil
	default:
		return 0, fmt.Errorf("saveformat: record has no usable save_version (%T)", v)
	}
}

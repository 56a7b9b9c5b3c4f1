// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package schema

import (
	"errors"
	"testing"
)

func TestParseEndian(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    string
		wantErr bool
	}{
		{"big", "meta:\n  endian: be\nitems:\n  - id: a\n    type: u8\n", EndianBig, false},
		{"little", "meta:\n  endian: le\nitems:\n  - id: a\n    type: u8\n", EndianLittle, false},
		{"default little", "items:\n  - id: a\n    type: u8\n", EndianLittle, false},
		{"unknown", "meta:\n  endian: middle\nitems:\n  - id: a\n    type: u8\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.src))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s.Endian != tt.want {
				t.Errorf("Endian = %q, want %q", s.Endian, tt.want)
			}
		})
	}
}

func TestParseFieldShapes(t *testing.T) {
	src := `
meta:
  endian: be
types:
  Upgrade:
    - id: id
      type: u32
    - id: owned
      type: bool
items:
  - id: save_version
    type: u16
  - id: season
    type: Option<u16>
    if: save_version >= 1
  - id: breath_effects
    type: u32
    if: save_version >= 27
    advance_if_false: true
  - id: n_upgrades
    type: u16
  - id: upgrades
    type: Upgrade
    repeat: Count(n_upgrades)
`
	s, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	fields := s.Root.Fields
	if len(fields) != 5 {
		t.Fatalf("root has %d fields, want 5", len(fields))
	}

	if f := fields[1]; !f.Optional || f.Prim != TypeU16 || f.CondSrc != "save_version >= 1" {
		t.Errorf("season parsed as %+v", f)
	}
	if f := fields[2]; !f.AdvanceIfAbsent || f.Optional || f.Prim != TypeU32 {
		t.Errorf("breath_effects parsed as %+v", f)
	}
	if f := fields[4]; f.Kind() != KindComposite || f.TypeName != "Upgrade" || f.CountSrc != "n_upgrades" {
		t.Errorf("upgrades parsed as %+v", f)
	}
	if td := s.Types["Upgrade"]; td == nil || len(td.Fields) != 2 || td.Fields[1].Prim != TypeBool {
		t.Errorf("Upgrade parsed as %+v", s.Types["Upgrade"])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing id", "items:\n  - type: u8\n"},
		{"bad id", "items:\n  - id: 9lives\n    type: u8\n"},
		{"missing type", "items:\n  - id: a\n"},
		{"unterminated option", "items:\n  - id: a\n    type: Option<u16\n    if: b\n"},
		{"malformed type", "items:\n  - id: a\n    type: u16[]\n"},
		{"unknown repeat kind", "items:\n  - id: n\n    type: u16\n  - id: a\n    type: u8\n    repeat: Times(n)\n"},
		{"empty count", "items:\n  - id: a\n    type: u8\n    repeat: Count()\n"},
		{"not yaml", ": : :\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.src)); err == nil {
				t.Errorf("Parse() succeeded, want error")
			}
		})
	}
}

func TestParseErrorIdentifiesField(t *testing.T) {
	src := "types:\n  Building:\n    - id: a\n      type: Option<u16\n      if: x\nitems:\n  - id: r\n    type: u8\n"
	_, err := Parse([]byte(src))
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("Parse() error = %v, want *SchemaError", err)
	}
	if se.TypeName != "Building" {
		t.Errorf("TypeName = %q, want Building", se.TypeName)
	}
}

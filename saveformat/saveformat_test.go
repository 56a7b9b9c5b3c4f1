// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package saveformat

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/savetools/binformat/savecodec"
)

func building(version int) map[string]any {
	b := map[string]any{
		"id":           uint64(12),
		"tier":         uint64(3),
		"count":        41.0,
		"total_built":  57.0,
		"cost":         1.25e9,
		"income":       3200.5,
		"time_owned":   86400.0,
		"total_income": 9.75e6,
	}
	if version >= 53 {
		b["max_unique_count"] = 44.0
		b["max_unique_built"] = 60.0
		b["max_unique_cost"] = 2.5e9
		b["max_unique_income"] = 4100.0
		b["max_unique_time"] = 90000.0
		b["max_unique_total"] = 1.2e7
	}
	return b
}

func upgrade(version int) map[string]any {
	u := map[string]any{
		"id":        uint64(305),
		"owned":     true,
		"rng_state": uint64(0xDEADBEEF),
	}
	if version >= 18 {
		u["cap1"] = true
	}
	if version >= 24 {
		u["cap2"] = false
	}
	return u
}

// record builds a canonical one-building, one-upgrade record for the given
// save version, shaped exactly as Decode would return it.
func record(version int) map[string]any {
	r := map[string]any{
		"save_version":   uint64(version),
		"seed":           uint64(1234),
		"breath_effects": uint64(0),
		"spells_pos":     uint64(17),
		"monsters_pos":   uint64(40),
		"n_buildings":    uint64(1),
		"buildings":      []any{building(version)},
		"n_upgrades":     uint64(1),
		"upgrades":       []any{upgrade(version)},
	}
	if version >= 1 {
		r["season"] = uint64(2)
	}
	if version >= 15 {
		r["egg_rng_state"] = uint64(0xCAFE)
		r["egg_stack_size"] = uint64(7)
	}
	if version >= 18 {
		r["season_n"] = uint64(4)
	}
	if version >= 24 {
		r["halloween_monsters"] = uint64(66)
	}
	if version >= 27 {
		r["breath_effects"] = uint64(5)
	}
	return r
}

func TestFormatLoads(t *testing.T) {
	s, err := Format()
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if s.Endian != "big" {
		t.Errorf("Endian = %q, want big", s.Endian)
	}
	for _, name := range []string{"Building", "Upgrade"} {
		if _, ok := s.Types[name]; !ok {
			t.Errorf("layout is missing type %s", name)
		}
	}
}

// Fixed per-version record sizes, checksum trailer excluded. Older clients
// hard-code these offsets, so they are part of the format contract.
func TestRecordSizes(t *testing.T) {
	tests := []struct {
		name    string
		version int
		want    int
	}{
		// v10: 18 header bytes (breath_effects reserved as zeros), two
		// count fields, a 56-byte building, a 9-byte upgrade.
		{"v10", 10, 18 + 2 + 56 + 2 + 9},
		// v60: all gates open. 30 header bytes, 104-byte building,
		// 11-byte upgrade.
		{"v60", 60, 30 + 2 + 104 + 2 + 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Format()
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			raw, err := s.Encode(record(tt.version))
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if len(raw) != tt.want {
				t.Errorf("record size = %d, want %d", len(raw), tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, version := range []int{10, 60} {
		in := record(version)
		save, err := Encode(in)
		if err != nil {
			t.Fatalf("Encode(v%d) error = %v", version, err)
		}
		out, err := Decode(save)
		if err != nil {
			t.Fatalf("Decode(v%d) error = %v", version, err)
		}
		if !reflect.DeepEqual(out, in) {
			t.Errorf("v%d round trip mismatch:\n got %#v\nwant %#v", version, out, in)
		}
	}
}

func TestEnvelopeVersionMatchesRecord(t *testing.T) {
	save, err := Encode(record(27))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.HasPrefix(save, "$27s") {
		t.Errorf("save = %q, want a $27s prefix", save[:8])
	}
}

func TestVersionBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		version int
		present []string
		absent  []string
	}{
		{"v14 below egg gate", 14, []string{"season"}, []string{"egg_rng_state", "egg_stack_size", "season_n"}},
		{"v15 at egg gate", 15, []string{"egg_rng_state", "egg_stack_size"}, []string{"season_n", "halloween_monsters"}},
		{"v52 below building extension", 52, []string{"halloween_monsters"}, nil},
		{"v53 at building extension", 53, []string{"halloween_monsters"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			save, err := Encode(record(tt.version))
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			out, err := Decode(save)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			for _, id := range tt.present {
				if _, ok := out[id]; !ok {
					t.Errorf("v%d: %s missing", tt.version, id)
				}
			}
			for _, id := range tt.absent {
				if _, ok := out[id]; ok {
					t.Errorf("v%d: %s present below its gate", tt.version, id)
				}
			}

			b := out["buildings"].([]any)[0].(map[string]any)
			_, extended := b["max_unique_count"]
			if want := tt.version >= 53; extended != want {
				t.Errorf("v%d: building extension present = %v, want %v", tt.version, extended, want)
			}
		})
	}
}

func TestDecodeRejectsTamperedSave(t *testing.T) {
	s, err := Format()
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	raw, err := s.Encode(record(10))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	raw = savecodec.AppendChecksum(raw)
	raw[4] ^= 0xFF // corrupt after the envelope layer can no longer catch it

	save, err := savecodec.Encode(raw, 10)
	if err != nil {
		t.Fatalf("savecodec.Encode() error = %v", err)
	}
	if _, err := Decode(save); !errors.Is(err, savecodec.ErrChecksum) {
		t.Errorf("Decode() error = %v, want ErrChecksum", err)
	}
}

func TestEncodeRequiresSaveVersion(t *testing.T) {
	r := record(10)
	delete(r, "save_version")
	if _, err := Encode(r); err == nil {
		t.Errorf("Encode() succeeded without save_version")
	}
}

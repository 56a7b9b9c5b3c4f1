// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Layout source shape:
//
//	meta:
//	  endian: be            # or le; little when omitted
//	types:
//	  Building:
//	    - id: count
//	      type: f64
//	items:
//	  - id: save_version
//	    type: u16
//	  - id: season_n
//	    type: Option<u16>
//	    if: save_version >= 18
//	  - id: buildings
//	    type: Building
//	    repeat: Count(n_buildings)
//
// Parse builds the IR only; Resolve performs all cross-field validation.

type rawField struct {
	ID             string `yaml:"id"`
	Type           string `yaml:"type"`
	If             string `yaml:"if"`
	Repeat         string `yaml:"repeat"`
	AdvanceIfFalse bool   `yaml:"advance_if_false"`
}

type rawSchema struct {
	Meta  map[string]string     `yaml:"meta"`
	Types map[string][]rawField `yaml:"types"`
	Items []rawField            `yaml:"items"`
}

// Parse parses layout source into a Schema. The returned Schema must be
// resolved before use.
func Parse(src []byte) (*Schema, error) {
	var raw rawSchema
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("schema: failed to parse layout source: %w", err)
	}

	endian, err := parseEndian(raw.Meta["endian"])
	if err != nil {
		return nil, err
	}

	s := &Schema{
		Endian: endian,
		Types:  make(map[string]*TypeDef, len(raw.Types)),
	}

	for name, items := range raw.Types {
		fields, err := parseFields(name, items)
		if err != nil {
			return nil, err
		}
		s.Types[name] = &TypeDef{Name: name, Fields: fields}
	}

	rootFields, err := parseFields("", raw.Items)
	if err != nil {
		return nil, err
	}
	s.Root = &TypeDef{Fields: rootFields}

	return s, nil
}

func parseEndian(v string) (string, error) {
	switch v {
	case "be":
		return EndianBig, nil
	case "le", "":
		return EndianLittle, nil
	default:
		return "", &SchemaError{Kind: ErrBadFieldSpec, Reason: fmt.Sprintf("meta.endian must be be or le, got %q", v)}
	}
}

func parseFields(typeName string, items []rawField) ([]FieldSpec, error) {
	fields := make([]FieldSpec, 0, len(items))
	for _, item := range items {
		f, err := parseField(typeName, item)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(typeName string, item rawField) (FieldSpec, error) {
	f := FieldSpec{
		ID:              item.ID,
		CondSrc:         item.If,
		AdvanceIfAbsent: item.AdvanceIfFalse,
	}

	if f.ID == "" {
		return f, &SchemaError{Kind: ErrBadFieldSpec, TypeName: typeName, Reason: "field entry has no id"}
	}
	if !isIdent(f.ID) {
		return f, &SchemaError{Kind: ErrBadFieldSpec, TypeName: typeName, Field: f.ID, Reason: "id is not a valid identifier"}
	}

	typ := item.Type
	if inner, ok := strings.CutPrefix(typ, "Option<"); ok {
		inner, ok = strings.CutSuffix(inner, ">")
		if !ok {
			return f, &SchemaError{Kind: ErrBadFieldSpec, TypeName: typeName, Field: f.ID, Reason: fmt.Sprintf("malformed type %q", typ)}
		}
		f.Optional = true
		typ = inner
	}
	switch {
	case typ == "":
		return f, &SchemaError{Kind: ErrBadFieldSpec, TypeName: typeName, Field: f.ID, Reason: "field entry has no type"}
	case PrimType(typ).Valid():
		f.Prim = PrimType(typ)
	case isIdent(typ):
		f.TypeName = typ
	default:
		return f, &SchemaError{Kind: ErrBadFieldSpec, TypeName: typeName, Field: f.ID, Reason: fmt.Sprintf("malformed type %q", typ)}
	}

	if item.Repeat != "" {
		count, err := parseRepeat(item.Repeat)
		if err != nil {
			return f, &SchemaError{Kind: ErrBadFieldSpec, TypeName: typeName, Field: f.ID, Reason: err.Error()}
		}
		f.CountSrc = count
	}

	return f, nil
}

// parseRepeat splits a `Count(expr)` repetition declaration.
func parseRepeat(v string) (string, error) {
	open := strings.IndexByte(v, '(')
	if open < 0 || !strings.HasSuffix(v, ")") {
		return "", fmt.Errorf("malformed repeat %q", v)
	}
	if kind := v[:open]; kind != "Count" {
		return "", fmt.Errorf("unknown repeat kind %q", kind)
	}
	inner := strings.TrimSpace(v[open+1 : len(v)-1])
	if inner == "" {
		return "", fmt.Errorf("empty Count expression")
	}
	return inner, nil
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != ""
}

// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package schema

import (
	"fmt"
	"math"
)

// encodeState is the output buffer of one encode call.
type encodeState struct {
	buf []byte
}

func (e *encodeState) write(data []byte) {
	e.buf = append(e.buf, data...)
}

// Encode serializes a record against the schema's root type, mirroring
// Decode's field order exactly. Which optional fields are present is
// re-derived from the record being written — conditions are evaluated
// against the values already encoded, never against stored flags — so the
// output length depends only on the gate fields, not on how the record was
// produced. Count fields are written from the length of the sequence they
// govern. Returns the wire bytes, or an EncodeError when the record's
// shape does not match the schema.
func (s *Schema) Encode(record map[string]any) ([]byte, error) {
	if err := s.ensureResolved(); err != nil {
		return nil, err
	}
	e := &encodeState{}
	if err := s.encodeType(s.Root, record, e, newContext(nil)); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func (s *Schema) encodeType(td *TypeDef, record map[string]any, e *encodeState, scope *Context) error {
	for i := range td.Fields {
		f := &td.Fields[i]

		if f.cond != nil {
			present, err := f.cond.evalBool(scope)
			if err != nil {
				return fieldErr(td.Name, f.ID, err)
			}
			if !present {
				if f.AdvanceIfAbsent {
					e.write(make([]byte, f.Prim.Width()))
					scope.set(f.ID, f.Prim.zeroValue())
				}
				continue
			}
		}

		if f.count != nil {
			if err := s.encodeRepeat(td, f, record[f.ID], e, scope); err != nil {
				return err
			}
			continue
		}

		v, ok := record[f.ID]
		if f.countFor != "" {
			// A count field's wire value is the governed sequence's
			// length, whatever the record says it is.
			if seq, isSeq := record[f.countFor].([]any); isSeq {
				v, ok = len(seq), true
			}
		}
		if !ok {
			return &EncodeError{TypeName: td.Name, Field: f.ID, Reason: "missing required field"}
		}

		if err := s.encodeValue(td, f, v, e, scope); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) encodeRepeat(td *TypeDef, f *FieldSpec, v any, e *encodeState, scope *Context) error {
	n, err := f.count.evalCount(scope)
	if err != nil {
		return fieldErr(td.Name, f.ID, err)
	}
	if n < 0 {
		return fieldErr(td.Name, f.ID, fmt.Errorf("count %d: %w", n, ErrInvalidRepeatCount))
	}

	seq, ok := v.([]any)
	if !ok {
		if v == nil && n == 0 {
			scope.set(f.ID, []any{})
			return nil
		}
		return &EncodeError{TypeName: td.Name, Field: f.ID, Reason: fmt.Sprintf("expected a sequence, got %T", v)}
	}
	if int64(len(seq)) != n {
		return &EncodeError{TypeName: td.Name, Field: f.ID,
			Reason: fmt.Sprintf("sequence has %d elements but its count field says %d", len(seq), n)}
	}

	for _, elem := range seq {
		if err := s.encodeElement(td, f, elem, e, scope); err != nil {
			return err
		}
	}
	scope.set(f.ID, seq)
	return nil
}

// encodeValue writes one non-repeated field and records its canonical
// value in scope for later conditions.
func (s *Schema) encodeValue(td *TypeDef, f *FieldSpec, v any, e *encodeState, scope *Context) error {
	switch f.Kind() {
	case KindComposite:
		m, ok := v.(map[string]any)
		if !ok {
			return &EncodeError{TypeName: td.Name, Field: f.ID, Reason: fmt.Sprintf("expected a record, got %T", v)}
		}
		if err := s.encodeType(s.Types[f.TypeName], m, e, newContext(scope)); err != nil {
			return err
		}
		scope.set(f.ID, m)
		return nil
	default:
		data, canonical, err := encodePrim(f.Prim, v, s.Endian)
		if err != nil {
			return &EncodeError{TypeName: td.Name, Field: f.ID, Reason: err.Error()}
		}
		e.write(data)
		scope.set(f.ID, canonical)
		return nil
	}
}

// encodeElement writes one element of a repeated field.
func (s *Schema) encodeElement(td *TypeDef, f *FieldSpec, v any, e *encodeState, scope *Context) error {
	switch f.Kind() {
	case KindComposite:
		m, ok := v.(map[string]any)
		if !ok {
			return &EncodeError{TypeName: td.Name, Field: f.ID, Reason: fmt.Sprintf("expected record elements, got %T", v)}
		}
		return s.encodeType(s.Types[f.TypeName], m, e, newContext(scope))
	default:
		data, _, err := encodePrim(f.Prim, v, s.Endian)
		if err != nil {
			return &EncodeError{TypeName: td.Name, Field: f.ID, Reason: err.Error()}
		}
		e.write(data)
		return nil
	}
}

// encodePrim serializes one primitive value and returns the wire bytes
// together with the value's canonical in-context form.
func encodePrim(p PrimType, v any, endian string) ([]byte, any, error) {
	width := p.Width()
	switch {
	case p == TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, nil, fmt.Errorf("expected bool, got %T", v)
		}
		if b {
			return []byte{1}, true, nil
		}
		return []byte{0}, false, nil

	case p == TypeF32:
		f, ok := toFloat64(v)
		if !ok {
			return nil, nil, fmt.Errorf("expected float, got %T", v)
		}
		bits := math.Float32bits(float32(f))
		return encodeUint(uint64(bits), width, endian), float64(float32(f)), nil

	case p == TypeF64:
		f, ok := toFloat64(v)
		if !ok {
			return nil, nil, fmt.Errorf("expected float, got %T", v)
		}
		return encodeUint(math.Float64bits(f), width, endian), f, nil

	case p.Unsigned():
		u, ok := toUint64(v)
		if !ok {
			return nil, nil, fmt.Errorf("expected unsigned integer, got %v (%T)", v, v)
		}
		if width < 8 && u >= uint64(1)<<(width*8) {
			return nil, nil, fmt.Errorf("value %d does not fit %s", u, p)
		}
		return encodeUint(u, width, endian), u, nil

	default: // signed integer
		n, ok := toInt64(v)
		if !ok {
			return nil, nil, fmt.Errorf("expected integer, got %v (%T)", v, v)
		}
		if width < 8 {
			limit := int64(1) << (width*8 - 1)
			if n < -limit || n >= limit {
				return nil, nil, fmt.Errorf("value %d does not fit %s", n, p)
			}
		}
		return encodeSint(n, width, endian), n, nil
	}
}

func encodeUint(val uint64, width int, endian string) []byte {
	buf := make([]byte, width)
	if endian == EndianLittle {
		for i := 0; i < width; i++ {
			buf[i] = byte(val >> (8 * i))
		}
	} else {
		for i := width - 1; i >= 0; i-- {
			buf[i] = byte(val)
			val >>= 8
		}
	}
	return buf
}

func encodeSint(val int64, width int, endian string) []byte {
	return encodeUint(uint64(val), width, endian)
}

func toUint64(v any) (uint64, bool) {
	switch val := v.(type) {
	case uint64:
		return val, true
	case uint:
		return uint64(val), true
	case int:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case int64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case float64:
		if val < 0 || val != math.Trunc(val) {
			return 0, false
		}
		return uint64(val), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

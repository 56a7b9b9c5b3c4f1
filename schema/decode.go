// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package schema

import (
	"fmt"
	"math"
)

// decodeState is the byte cursor of one decode call.
type decodeState struct {
	data []byte
	off  int
}

// read consumes n bytes and advances the cursor.
func (d *decodeState) read(n int) ([]byte, error) {
	if d.off+n > len(d.data) {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d: %w",
			n, d.off, len(d.data)-d.off, ErrPrematureEOF)
	}
	out := d.data[d.off : d.off+n]
	d.off += n
	return out, nil
}

// Decode decodes one record from data according to the schema's root type.
// Fields are processed strictly in declared order; any failure aborts the
// whole decode. Values are returned as a map keyed by field id: unsigned
// integers as uint64, signed as int64, floats as float64, booleans as
// bool, sequences as []any, composite records as nested maps. Skipped
// optional fields have no entry; advance-on-absent fields carry their
// type's zero value. Bytes past the root layout are left unread.
func (s *Schema) Decode(data []byte) (map[string]any, error) {
	if err := s.ensureResolved(); err != nil {
		return nil, err
	}
	d := &decodeState{data: data}
	return s.decodeType(s.Root, d, newContext(nil))
}

func (s *Schema) decodeType(td *TypeDef, d *decodeState, scope *Context) (map[string]any, error) {
	for i := range td.Fields {
		f := &td.Fields[i]

		if f.cond != nil {
			present, err := f.cond.evalBool(scope)
			if err != nil {
				return nil, fieldErr(td.Name, f.ID, err)
			}
			if !present {
				if f.AdvanceIfAbsent {
					// Still consume the field's full width so later
					// offsets stay deterministic across versions.
					if _, err := d.read(f.Prim.Width()); err != nil {
						return nil, fieldErr(td.Name, f.ID, err)
					}
					scope.set(f.ID, f.Prim.zeroValue())
				}
				continue
			}
		}

		if f.count != nil {
			seq, err := s.decodeRepeat(td, f, d, scope)
			if err != nil {
				return nil, err
			}
			scope.set(f.ID, seq)
			continue
		}

		v, err := s.decodeValue(f, d, scope)
		if err != nil {
			return nil, fieldErr(td.Name, f.ID, err)
		}
		scope.set(f.ID, v)
	}
	return scope.values, nil
}

func (s *Schema) decodeRepeat(td *TypeDef, f *FieldSpec, d *decodeState, scope *Context) ([]any, error) {
	n, err := f.count.evalCount(scope)
	if err != nil {
		return nil, fieldErr(td.Name, f.ID, err)
	}
	if n < 0 {
		return nil, fieldErr(td.Name, f.ID, fmt.Errorf("count %d: %w", n, ErrInvalidRepeatCount))
	}

	// Cap the preallocation by what the stream can still supply: each
	// element consumes at least one byte, and a hostile count must surface
	// as a decode error, not a failed allocation.
	capHint := n
	if remaining := int64(len(d.data) - d.off); capHint > remaining {
		capHint = remaining
	}
	seq := make([]any, 0, capHint)
	for i := int64(0); i < n; i++ {
		v, err := s.decodeValue(f, d, scope)
		if err != nil {
			return nil, fieldErr(td.Name, f.ID, err)
		}
		seq = append(seq, v)
	}
	return seq, nil
}

// decodeValue decodes a single element of f: a primitive read or a
// recursive composite decode in a child scope.
func (s *Schema) decodeValue(f *FieldSpec, d *decodeState, scope *Context) (any, error) {
	switch f.Kind() {
	case KindComposite:
		return s.decodeType(s.Types[f.TypeName], d, newContext(scope))
	default:
		data, err := d.read(f.Prim.Width())
		if err != nil {
			return nil, err
		}
		return decodePrim(f.Prim, data, s.Endian), nil
	}
}

func decodePrim(p PrimType, data []byte, endian string) any {
	switch p {
	case TypeBool:
		return data[0] != 0
	case TypeF32:
		return float64(math.Float32frombits(uint32(decodeUint(data, endian))))
	case TypeF64:
		return math.Float64frombits(decodeUint(data, endian))
	default:
		if p.Unsigned() {
			return decodeUint(data, endian)
		}
		return decodeSint(data, endian)
	}
}

func decodeUint(data []byte, endian string) uint64 {
	var val uint64
	if endian == EndianLittle {
		for i := len(data) - 1; i >= 0; i-- {
			val = (val << 8) | uint64(data[i])
		}
	} else {
		for _, b := range data {
			val = (val << 8) | uint64(b)
		}
	}
	return val
}

func decodeSint(data []byte, endian string) int64 {
	uval := decodeUint(data, endian)
	bits := len(data) * 8
	if bits == 64 {
		return int64(uval)
	}
	if uval >= uint64(1)<<(bits-1) {
		return int64(uval) - (1 << bits)
	}
	return int64(uval)
}

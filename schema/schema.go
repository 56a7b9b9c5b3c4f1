// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

// Package schema implements a schema-driven binary codec: a declarative
// record layout (ordered fields, primitives, named composite types,
// version-gated optional fields, count-driven repetition) is compiled into
// an in-memory form that decodes and encodes that layout byte-exactly.
//
// A schema is loaded once (Parse + Resolve) and is immutable and safe to
// share afterwards; each Decode/Encode call owns its own context tree.
package schema

// PrimType is a fixed-width primitive field type.
type PrimType string

const (
	TypeU8   PrimType = "u8"
	TypeU16  PrimType = "u16"
	TypeU32  PrimType = "u32"
	TypeU64  PrimType = "u64"
	TypeI8   PrimType = "i8"
	TypeI16  PrimType = "i16"
	TypeI32  PrimType = "i32"
	TypeI64  PrimType = "i64"
	TypeF32  PrimType = "f32"
	TypeF64  PrimType = "f64"
	TypeBool PrimType = "bool" // one byte, 0 or 1
)

// Endianness constants for Schema.Endian.
const (
	EndianBig    = "big"
	EndianLittle = "little"
)

// primWidths maps each primitive to its fixed byte width.
var primWidths = map[PrimType]int{
	TypeU8: 1, TypeU16: 2, TypeU32: 4, TypeU64: 8,
	TypeI8: 1, TypeI16: 2, TypeI32: 4, TypeI64: 8,
	TypeF32: 4, TypeF64: 8,
	TypeBool: 1,
}

// Width returns the byte width of a primitive, or 0 for an unknown name.
func (p PrimType) Width() int {
	return primWidths[p]
}

// Valid reports whether p names a supported primitive.
func (p PrimType) Valid() bool {
	_, ok := primWidths[p]
	return ok
}

// Numeric reports whether p is an integer or float type.
func (p PrimType) Numeric() bool {
	return p.Valid() && p != TypeBool
}

// Integer reports whether p is an unsigned or signed integer type.
func (p PrimType) Integer() bool {
	switch p {
	case TypeU8, TypeU16, TypeU32, TypeU64, TypeI8, TypeI16, TypeI32, TypeI64:
		return true
	}
	return false
}

// Unsigned reports whether p is an unsigned integer type.
func (p PrimType) Unsigned() bool {
	switch p {
	case TypeU8, TypeU16, TypeU32, TypeU64:
		return true
	}
	return false
}

// zeroValue is the value stored and written for an advance-on-absent field
// whose condition is false.
func (p PrimType) zeroValue() any {
	switch {
	case p == TypeBool:
		return false
	case p == TypeF32 || p == TypeF64:
		return float64(0)
	case p.Unsigned():
		return uint64(0)
	default:
		return int64(0)
	}
}

// FieldKind is the closed set of field shapes the engines dispatch over.
type FieldKind int

const (
	KindPrimitive FieldKind = iota
	KindComposite
)

// FieldSpec describes one field of a TypeDef.
//
// Exactly one of Prim / TypeName is set. A field with a Condition is
// present only when the condition holds; its absence policy is skip
// (zero bytes) unless AdvanceIfAbsent is set, in which case the field
// still occupies its full width carrying the type's zero value. A field
// with CountSrc is a sequence whose element count is the evaluated
// expression.
type FieldSpec struct {
	ID       string
	Prim     PrimType // primitive fields
	TypeName string   // composite fields

	Optional        bool // declared with the Option<T> wrapper (skip policy)
	AdvanceIfAbsent bool // advance-on-absent policy; primitives only

	CondSrc  string // `if:` expression source, "" when unconditional
	CountSrc string // Count(...) expression source, "" when not repeated

	cond  *fieldExpr
	count *fieldExpr

	// countFor names the sibling sequence field whose length this field
	// records on the wire. Set by Resolve when an unconditional sequence's
	// Count expression is a bare reference to this field; Encode then
	// derives the written value from the sequence itself.
	countFor string
}

// Kind returns the field's shape variant.
func (f *FieldSpec) Kind() FieldKind {
	if f.TypeName != "" {
		return KindComposite
	}
	return KindPrimitive
}

// Repeated reports whether the field is a count-driven sequence.
func (f *FieldSpec) Repeated() bool {
	return f.CountSrc != ""
}

// TypeDef is an ordered list of field descriptors. The root TypeDef of a
// schema has an empty name.
type TypeDef struct {
	Name   string
	Fields []FieldSpec
}

// Schema is the immutable in-memory representation of a record layout.
type Schema struct {
	Endian string // EndianBig or EndianLittle, applies to every field
	Types  map[string]*TypeDef
	Root   *TypeDef

	// rootScope is the leading run of unconditioned, unrepeated primitive
	// root fields; these are the only fields reachable through `_root.`
	// qualification. Populated by Resolve.
	rootScope map[string]PrimType

	resolved bool
}

// Load parses schema source and resolves it in one step.
func Load(src []byte) (*Schema, error) {
	s, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if _, err := s.Resolve(); err != nil {
		return nil, err
	}
	return s, nil
}

// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package schema

import (
	"errors"
	"fmt"
)

// Decode-time sentinels. All abort the enclosing decode immediately; there
// is no partial-record recovery.
var (
	// ErrPrematureEOF is returned when the stream ends before a field's
	// required bytes are available.
	ErrPrematureEOF = errors.New("schema: premature end of stream")

	// ErrUnboundIdentifier is returned when a condition or count references
	// an identifier that is not in the reachable scope chain. Static
	// checking catches most of these at load time; it can still surface at
	// decode time when the referenced field was itself skipped.
	ErrUnboundIdentifier = errors.New("schema: unbound identifier")

	// ErrInvalidRepeatCount is returned when a Count expression evaluates
	// to a negative value.
	ErrInvalidRepeatCount = errors.New("schema: invalid repeat count")
)

// SchemaError kinds.
const (
	ErrUnknownType    = "unknown type"
	ErrCyclicType     = "cyclic type reference"
	ErrDuplicateField = "duplicate field id"
	ErrBadExpression  = "invalid expression"
	ErrBadFieldSpec   = "invalid field spec"
)

// SchemaError is a load-time schema fault. Schemas that produce one never
// reach Decode or Encode.
type SchemaError struct {
	Kind     string
	TypeName string // offending TypeDef, "" for the root
	Field    string // offending field id, may be ""
	Reason   string
}

func (e *SchemaError) Error() string {
	scope := e.TypeName
	if scope == "" {
		scope = "items"
	}
	if e.Field != "" {
		scope += "." + e.Field
	}
	if e.Reason != "" {
		return fmt.Sprintf("schema: %s at %s: %s", e.Kind, scope, e.Reason)
	}
	return fmt.Sprintf("schema: %s at %s", e.Kind, scope)
}

// EncodeError reports a value whose shape does not match the TypeDef it is
// being encoded against.
type EncodeError struct {
	TypeName string
	Field    string
	Reason   string
}

func (e *EncodeError) Error() string {
	scope := e.TypeName
	if scope == "" {
		scope = "items"
	}
	return fmt.Sprintf("schema: cannot encode %s.%s: %s", scope, e.Field, e.Reason)
}

// fieldErr wraps a decode-time sentinel with the offending field.
func fieldErr(typeName, field string, err error) error {
	scope := typeName
	if scope == "" {
		scope = "items"
	}
	return fmt.Errorf("%s.%s: %w", scope, field, err)
}

// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package schema

import (
	"fmt"
	"sort"
)

// Resolve validates the schema and returns its TypeDefs ordered so that
// every type appears after all types it references (the root last).
// Composite recursion is unsupported: the format is strictly layered, so a
// type containing itself, directly or indirectly, is rejected.
//
// Resolve also compiles every condition and count expression, which makes
// all expression faults — unknown identifiers, forward references,
// ill-typed comparisons — load-time schema errors. A schema that resolves
// never produces those faults mid-decode, with one exception: a reference
// to a field that was itself skipped by its own condition can only be
// detected at run time.
func (s *Schema) Resolve() ([]*TypeDef, error) {
	for _, td := range s.allTypes() {
		if err := checkDuplicateIDs(td); err != nil {
			return nil, err
		}
	}

	order, err := s.orderTypes()
	if err != nil {
		return nil, err
	}

	s.rootScope = rootScopeOf(s.Root)

	for _, td := range order {
		if err := s.compileType(td); err != nil {
			return nil, err
		}
	}

	s.resolved = true
	return order, nil
}

func (s *Schema) ensureResolved() error {
	if !s.resolved {
		return fmt.Errorf("schema: not resolved; call Resolve (or Load) before decoding or encoding")
	}
	return nil
}

func (s *Schema) allTypes() []*TypeDef {
	types := make([]*TypeDef, 0, len(s.Types)+1)
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		types = append(types, s.Types[name])
	}
	return append(types, s.Root)
}

func checkDuplicateIDs(td *TypeDef) error {
	seen := make(map[string]struct{}, len(td.Fields))
	for i := range td.Fields {
		id := td.Fields[i].ID
		if _, dup := seen[id]; dup {
			return &SchemaError{Kind: ErrDuplicateField, TypeName: td.Name, Field: id}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// orderTypes runs a depth-first walk over the composite reference graph,
// emitting each type after its dependencies and rejecting cycles and
// unknown type names.
func (s *Schema) orderTypes() ([]*TypeDef, error) {
	const (
		white = iota // unvisited
		gray         // on the current path
		black        // done
	)
	color := make(map[string]int, len(s.Types))
	var order []*TypeDef

	var visit func(td *TypeDef) error
	visit = func(td *TypeDef) error {
		color[td.Name] = gray
		for i := range td.Fields {
			f := &td.Fields[i]
			if f.Kind() != KindComposite {
				continue
			}
			dep, ok := s.Types[f.TypeName]
			if !ok {
				return &SchemaError{Kind: ErrUnknownType, TypeName: td.Name, Field: f.ID, Reason: f.TypeName}
			}
			switch color[dep.Name] {
			case gray:
				return &SchemaError{Kind: ErrCyclicType, TypeName: td.Name, Field: f.ID,
					Reason: fmt.Sprintf("%s is part of a reference cycle", f.TypeName)}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[td.Name] = black
		order = append(order, td)
		return nil
	}

	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if color[name] == white {
			if err := visit(s.Types[name]); err != nil {
				return nil, err
			}
		}
	}

	// Root walks last so every named type precedes it. Its own composite
	// references still need the unknown-type check.
	for i := range s.Root.Fields {
		f := &s.Root.Fields[i]
		if f.Kind() == KindComposite {
			if _, ok := s.Types[f.TypeName]; !ok {
				return nil, &SchemaError{Kind: ErrUnknownType, TypeName: "", Field: f.ID, Reason: f.TypeName}
			}
		}
	}
	return append(order, s.Root), nil
}

// rootScopeOf collects the leading run of unconditioned, unrepeated
// primitive root fields. Only these are reachable through `_root.`: they
// are guaranteed decoded before any composite field can evaluate a
// condition against them.
func rootScopeOf(root *TypeDef) map[string]PrimType {
	scope := make(map[string]PrimType)
	for i := range root.Fields {
		f := &root.Fields[i]
		if f.Kind() != KindPrimitive || f.CondSrc != "" || f.Repeated() {
			break
		}
		scope[f.ID] = f.Prim
	}
	return scope
}

// compileType checks per-field declaration rules and compiles the type's
// expressions against the identifiers visible at each field's position.
func (s *Schema) compileType(td *TypeDef) error {
	sc := exprScope{
		local: make(map[string]PrimType),
		root:  s.rootScope,
	}

	for i := range td.Fields {
		f := &td.Fields[i]

		if err := checkPolicy(td, f); err != nil {
			return err
		}

		if f.CondSrc != "" {
			cond, err := compileCondition(f.CondSrc, sc)
			if err != nil {
				return &SchemaError{Kind: ErrBadExpression, TypeName: td.Name, Field: f.ID, Reason: err.Error()}
			}
			f.cond = cond
		}

		if f.CountSrc != "" {
			count, err := compileCount(f.CountSrc, sc)
			if err != nil {
				return &SchemaError{Kind: ErrBadExpression, TypeName: td.Name, Field: f.ID, Reason: err.Error()}
			}
			f.count = count

			// Backlink only when the sequence is unconditionally present.
			// A gated sequence may be skipped at encode time, and its
			// count field must then carry the record's own value rather
			// than the length of data that was never written.
			if id, ok := count.bareIdent(); ok && f.CondSrc == "" {
				for j := range td.Fields[:i] {
					src := &td.Fields[j]
					if src.ID == id && src.countFor == "" {
						src.countFor = f.ID
						break
					}
				}
			}
		}

		// Only scalars decoded in this scope can appear in later
		// expressions; sequences and nested records are not operands.
		if f.Kind() == KindPrimitive && !f.Repeated() {
			sc.local[f.ID] = f.Prim
		}
	}
	return nil
}

func checkPolicy(td *TypeDef, f *FieldSpec) error {
	bad := func(reason string) error {
		return &SchemaError{Kind: ErrBadFieldSpec, TypeName: td.Name, Field: f.ID, Reason: reason}
	}
	switch {
	case f.AdvanceIfAbsent && f.CondSrc == "":
		return bad("advance_if_false requires a condition")
	case f.AdvanceIfAbsent && f.Optional:
		return bad("advance_if_false cannot be combined with Option<T>; the two declare opposite absence policies")
	case f.AdvanceIfAbsent && f.Kind() == KindComposite:
		return bad("advance_if_false requires a fixed-width primitive type")
	case f.AdvanceIfAbsent && f.Repeated():
		return bad("advance_if_false cannot apply to a repeated field")
	case f.Optional && f.CondSrc == "":
		return bad("Option<T> requires a condition")
	case f.Optional && f.Repeated():
		return bad("Option<T> cannot wrap a repeated field")
	}
	return nil
}

// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package schema

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// The expression language of `if:` conditions and `Count()` expressions is
// deliberately small: comparisons between field references and literals,
// conjunction/disjunction of comparisons, bare boolean fields, and — for
// counts — a bare integer field reference. Programs are compiled once at
// Resolve time and re-evaluated freely at run time; the grammar has no
// side effects, so re-evaluation is always safe.
//
// Compilation is delegated to expr-lang, but every expression is first
// walked statically so that only the minimal grammar is accepted, every
// referenced identifier is a field decoded earlier in program order, and
// operand types line up. An ill-typed condition is a schema error, never a
// mid-decode surprise. expr-lang's builtins are disabled at compile time;
// identifiers like count or len always resolve as fields.

// exprRef is one identifier reference inside a compiled expression.
type exprRef struct {
	root bool // qualified as _root.<id>
	id   string
}

func (r exprRef) String() string {
	if r.root {
		return "_root." + r.id
	}
	return r.id
}

// fieldExpr is a compiled condition or count expression.
type fieldExpr struct {
	src  string
	prog *vm.Program
	refs []exprRef
}

type operandType int

const (
	otNum operandType = iota
	otBool
)

func primOperand(p PrimType) operandType {
	if p == TypeBool {
		return otBool
	}
	return otNum
}

// exprScope carries the statically known identifiers during validation:
// sibling fields decoded before the expression's field, and the root
// fields reachable through `_root.`.
type exprScope struct {
	local map[string]PrimType
	root  map[string]PrimType
}

// compileCondition validates and compiles an `if:` expression.
func compileCondition(src string, sc exprScope) (*fieldExpr, error) {
	e, t, err := compileExpr(src, sc)
	if err != nil {
		return nil, err
	}
	if t != otBool {
		return nil, fmt.Errorf("condition %q does not evaluate to a boolean", src)
	}
	return e, nil
}

// compileCount validates and compiles a Count() expression. The governing
// value must come from an integer field decoded earlier (or be a literal).
func compileCount(src string, sc exprScope) (*fieldExpr, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("count %q: %w", src, err)
	}

	e := &fieldExpr{src: src}
	switch n := tree.Node.(type) {
	case *ast.IdentifierNode:
		p, ok := sc.local[n.Value]
		if !ok {
			return nil, fmt.Errorf("count %q references %q before it is decoded", src, n.Value)
		}
		if !p.Integer() {
			return nil, fmt.Errorf("count %q: field %q is %s, not an integer", src, n.Value, p)
		}
		e.refs = append(e.refs, exprRef{id: n.Value})
	case *ast.MemberNode:
		ref, p, err := rootMember(n, sc)
		if err != nil {
			return nil, fmt.Errorf("count %q: %w", src, err)
		}
		if !p.Integer() {
			return nil, fmt.Errorf("count %q: field %q is %s, not an integer", src, ref.id, p)
		}
		e.refs = append(e.refs, ref)
	case *ast.IntegerNode:
		// constant repetition
	default:
		return nil, fmt.Errorf("count %q must be a field reference or integer literal", src)
	}

	prog, err := expr.Compile(src, expr.DisableAllBuiltins())
	if err != nil {
		return nil, fmt.Errorf("count %q: %w", src, err)
	}
	e.prog = prog
	return e, nil
}

func compileExpr(src string, sc exprScope) (*fieldExpr, operandType, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, 0, fmt.Errorf("expression %q: %w", src, err)
	}

	e := &fieldExpr{src: src}
	t, err := e.checkNode(tree.Node, sc)
	if err != nil {
		return nil, 0, fmt.Errorf("expression %q: %w", src, err)
	}

	prog, err := expr.Compile(src, expr.DisableAllBuiltins())
	if err != nil {
		return nil, 0, fmt.Errorf("expression %q: %w", src, err)
	}
	e.prog = prog
	return e, t, nil
}

// checkNode enforces the grammar and typing rules while collecting
// identifier references.
func (e *fieldExpr) checkNode(n ast.Node, sc exprScope) (operandType, error) {
	switch node := n.(type) {
	case *ast.BinaryNode:
		lt, err := e.checkNode(node.Left, sc)
		if err != nil {
			return 0, err
		}
		rt, err := e.checkNode(node.Right, sc)
		if err != nil {
			return 0, err
		}
		switch node.Operator {
		case "&&", "||", "and", "or":
			if lt != otBool || rt != otBool {
				return 0, fmt.Errorf("%q requires boolean operands", node.Operator)
			}
			return otBool, nil
		case "<", "<=", ">", ">=":
			if lt != otNum || rt != otNum {
				return 0, fmt.Errorf("ordering comparison %q requires numeric operands", node.Operator)
			}
			return otBool, nil
		case "==", "!=":
			if lt != rt {
				return 0, fmt.Errorf("%q operands have mismatched types", node.Operator)
			}
			return otBool, nil
		default:
			return 0, fmt.Errorf("operator %q is not part of the condition grammar", node.Operator)
		}

	case *ast.IdentifierNode:
		if node.Value == "_root" {
			return 0, fmt.Errorf("_root may only qualify a field reference")
		}
		p, ok := sc.local[node.Value]
		if !ok {
			return 0, fmt.Errorf("identifier %q does not name a field decoded earlier in this scope", node.Value)
		}
		e.refs = append(e.refs, exprRef{id: node.Value})
		return primOperand(p), nil

	case *ast.MemberNode:
		ref, p, err := rootMember(node, sc)
		if err != nil {
			return 0, err
		}
		e.refs = append(e.refs, ref)
		return primOperand(p), nil

	case *ast.IntegerNode, *ast.FloatNode:
		return otNum, nil

	case *ast.BoolNode:
		return otBool, nil

	default:
		return 0, fmt.Errorf("syntax %T is not part of the condition grammar", n)
	}
}

// rootMember validates a `_root.<id>` reference.
func rootMember(n *ast.MemberNode, sc exprScope) (exprRef, PrimType, error) {
	base, ok := n.Node.(*ast.IdentifierNode)
	if !ok || base.Value != "_root" {
		return exprRef{}, "", fmt.Errorf("only _root qualification is supported")
	}
	prop, ok := n.Property.(*ast.StringNode)
	if !ok {
		return exprRef{}, "", fmt.Errorf("_root reference must be a plain field name")
	}
	p, ok := sc.root[prop.Value]
	if !ok {
		return exprRef{}, "", fmt.Errorf("_root.%s does not name a root field decoded before any composite", prop.Value)
	}
	return exprRef{root: true, id: prop.Value}, p, nil
}

// bareIdent returns the identifier name when the compiled expression is a
// single unqualified field reference.
func (e *fieldExpr) bareIdent() (string, bool) {
	if len(e.refs) == 1 && !e.refs[0].root && e.src == e.refs[0].id {
		return e.refs[0].id, true
	}
	return "", false
}

// bindEnv builds the evaluation environment and verifies every referenced
// identifier is live in it. A reference can go dead at run time when the
// field it names was skipped by its own condition.
func (e *fieldExpr) bindEnv(c *Context) (map[string]any, error) {
	env := c.env()
	for _, ref := range e.refs {
		if ref.root {
			rootEnv := env["_root"].(map[string]any)
			if _, ok := rootEnv[ref.id]; !ok {
				return nil, fmt.Errorf("%s: %w", ref, ErrUnboundIdentifier)
			}
			continue
		}
		if _, ok := env[ref.id]; !ok {
			return nil, fmt.Errorf("%s: %w", ref, ErrUnboundIdentifier)
		}
	}
	return env, nil
}

// evalBool evaluates a condition against a context.
func (e *fieldExpr) evalBool(c *Context) (bool, error) {
	env, err := e.bindEnv(c)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(e.prog, env)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", e.src, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %T, not bool", e.src, out)
	}
	return b, nil
}

// evalCount evaluates a count expression against a context.
func (e *fieldExpr) evalCount(c *Context) (int64, error) {
	env, err := e.bindEnv(c)
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(e.prog, env)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", e.src, err)
	}
	switch n := out.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("count %q evaluated to %T, not an integer", e.src, out)
	}
}

// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package schema

// Context is the runtime scope of one record while it is being decoded or
// encoded: every field value lands here under its id before the next field
// is processed, so later conditions and counts can observe it. Nested
// composite fields run in a child Context chained to their parent; `_root.`
// qualified identifiers resolve against the outermost Context of the
// chain. Contexts live only for the duration of a single Decode or Encode
// call.
type Context struct {
	values map[string]any
	parent *Context
}

func newContext(parent *Context) *Context {
	return &Context{values: make(map[string]any), parent: parent}
}

func (c *Context) set(id string, v any) {
	c.values[id] = v
}

// lookup resolves an unqualified identifier against the current scope only.
func (c *Context) lookup(id string) (any, bool) {
	v, ok := c.values[id]
	return v, ok
}

// root walks the parent chain to the outermost Context.
func (c *Context) root() *Context {
	r := c
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// env builds the evaluation environment for an expression: every scalar in
// the current scope by id, plus `_root` bound to the root scope's scalars.
// Unsigned values are presented as int64; the format contract keeps all
// gate and count fields far below the int64 range.
func (c *Context) env() map[string]any {
	env := make(map[string]any, len(c.values)+1)
	for id, v := range c.values {
		if sv, ok := scalar(v); ok {
			env[id] = sv
		}
	}
	root := c.root()
	rootEnv := make(map[string]any, len(root.values))
	for id, v := range root.values {
		if sv, ok := scalar(v); ok {
			rootEnv[id] = sv
		}
	}
	env["_root"] = rootEnv
	return env
}

// scalar converts a stored field value into its expression-facing form.
// Sequences and nested records are not expression operands.
func scalar(v any) (any, bool) {
	switch val := v.(type) {
	case uint64:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return val, true
	case bool:
		return val, true
	}
	return nil, false
}

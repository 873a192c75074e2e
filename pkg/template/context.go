package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Context is the read-only value store a template resolves against. It
// exposes three namespaces: "props", "env", and "input", where "input" is an
// alias of "props". A Context is immutable for the duration of one
// resolution pass; loop variables are layered on top by the engine and never
// written back.
type Context struct {
	props map[string]any
	env   map[string]any
}

// NewContext creates a Context from caller-supplied properties and
// environment values. Nil maps are treated as empty.
func NewContext(props, env map[string]any) *Context {
	if props == nil {
		props = map[string]any{}
	}
	if env == nil {
		env = map[string]any{}
	}
	return &Context{props: props, env: env}
}

// Props returns the props namespace.
func (c *Context) Props() map[string]any { return c.props }

// Env returns the env namespace.
func (c *Context) Env() map[string]any { return c.env }

// Lookup resolves a dot-separated path against the context namespaces and
// returns the raw value. Callers that need the value itself, not its
// rendered text, use this instead of a placeholder.
func (c *Context) Lookup(path string) (any, error) {
	return resolvePath(path, c, nil)
}

// Namespace returns the root value for a namespace name.
func (c *Context) Namespace(name string) (any, bool) {
	switch name {
	case "props", "input":
		return c.props, true
	case "env":
		return c.env, true
	}
	return nil, false
}

// scope is one loop-variable binding. Scopes form a linked chain so nested
// loops see all enclosing bindings, innermost first.
type scope struct {
	parent *scope
	name   string
	value  any
}

func (s *scope) lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.value, true
		}
	}
	return nil, false
}

// resolvePath resolves a dot-separated path against loop scopes and the
// context namespaces. The first segment must be a loop variable or one of
// props/env/input; later segments index into maps, or into sequences when
// numeric.
func resolvePath(path string, ctx *Context, sc *scope) (any, error) {
	parts := strings.Split(path, ".")
	head := parts[0]

	var cur any
	if v, ok := sc.lookup(head); ok {
		cur = v
	} else if ns, ok := ctx.Namespace(head); ok {
		cur = ns
	} else {
		return nil, fmt.Errorf("%w: %q is not a known namespace or loop variable in %q", ErrResolution, head, path)
	}

	for _, seg := range parts[1:] {
		switch container := cur.(type) {
		case map[string]any:
			v, ok := container[seg]
			if !ok {
				return nil, fmt.Errorf("%w: path %q not found", ErrResolution, path)
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("%w: segment %q of %q is not a numeric index", ErrResolution, seg, path)
			}
			if idx < 0 || idx >= len(container) {
				return nil, fmt.Errorf("%w: index %d out of range in %q", ErrResolution, idx, path)
			}
			cur = container[idx]
		default:
			return nil, fmt.Errorf("%w: cannot access %q on non-dict value in %q", ErrResolution, seg, path)
		}
	}

	return cur, nil
}

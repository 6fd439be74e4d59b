package fctx

import "github.com/flagkit/core/internal/fval"

// Builder incrementally constructs a single-kind Context.
type Builder struct {
	kind       string
	key        string
	name       fval.Value
	hasName    bool
	attributes map[string]fval.Value
	anonymous  bool
	private    []AttrRef
}

// NewBuilder starts building a context with the given key and DefaultKind.
func NewBuilder(key string) *Builder {
	return &Builder{kind: DefaultKind, key: key}
}

func (b *Builder) Kind(kind string) *Builder {
	if kind != "" {
		b.kind = kind
	}
	return b
}

func (b *Builder) Key(key string) *Builder {
	b.key = key
	return b
}

func (b *Builder) Name(name string) *Builder {
	b.name = fval.String(name)
	b.hasName = true
	return b
}

func (b *Builder) Anonymous(a bool) *Builder {
	b.anonymous = a
	return b
}

// Set assigns a custom attribute. Setting "kind", "key", "name", or
// "anonymous" through Set has no special effect; use the dedicated methods
// for those.
func (b *Builder) Set(name string, value fval.Value) *Builder {
	if b.attributes == nil {
		b.attributes = make(map[string]fval.Value)
	}
	b.attributes[name] = value
	return b
}

func (b *Builder) SetString(name, value string) *Builder {
	return b.Set(name, fval.String(value))
}

func (b *Builder) SetBool(name string, value bool) *Builder {
	return b.Set(name, fval.Bool(value))
}

func (b *Builder) SetInt(name string, value int) *Builder {
	return b.Set(name, fval.Int(value))
}

// Private marks one or more attribute references as private (to be redacted
// from analytics events).
func (b *Builder) Private(refs ...string) *Builder {
	for _, r := range refs {
		b.private = append(b.private, NewAttrRef(r))
	}
	return b
}

// Build finalizes the context. Validation errors are stored on the Context
// and surfaced via Err().
func (b *Builder) Build() Context {
	c := Context{
		defined:    true,
		kind:       b.kind,
		key:        b.key,
		name:       b.name,
		hasName:    b.hasName,
		anonymous:  b.anonymous,
		attributes: b.attributes,
		private:    b.private,
	}
	if err := validateKind(c.kind); err != nil {
		c.err = err
	} else if c.key == "" {
		c.err = ErrMissingKey
	}
	return c
}

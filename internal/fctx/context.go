// Package fctx implements the evaluation Context: the subject of a flag
// evaluation, carrying one or more (kind, key, attributes) tuples.
package fctx

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/flagkit/core/internal/fval"
)

// DefaultKind is used for single contexts that don't specify a kind.
const DefaultKind = "user"

// MultiKind marks a Context as a container of several single-kind contexts.
const MultiKind = "multi"

var (
	ErrUninitialized = errors.New("fctx: uninitialized context")
	ErrMissingKey    = errors.New("fctx: context key must not be empty")
	ErrMissingKind   = errors.New("fctx: context kind must not be empty")
	ErrInvalidKind   = errors.New("fctx: context kind contains invalid characters")
	ErrDuplicateKind = errors.New("fctx: multi-context has duplicate kind")
	ErrEmptyMulti    = errors.New("fctx: multi-context must contain at least one kind")
)

// Context is a collection of attributes addressable in flag evaluations and
// analytics events. The zero Context is not valid; build one with New,
// NewMulti, or Builder.
type Context struct {
	defined    bool
	err        error
	kind       string
	key        string
	name       fval.Value
	hasName    bool
	attributes map[string]fval.Value
	anonymous  bool
	private    []AttrRef
	multi      []Context
}

// New constructs a single-kind context with DefaultKind.
func New(key string) Context {
	return NewWithKind(DefaultKind, key)
}

// NewWithKind constructs a single-kind context.
func NewWithKind(kind, key string) Context {
	c := Context{defined: true, kind: kind, key: key}
	if kind == "" {
		c.kind = DefaultKind
	}
	if err := validateKind(c.kind); err != nil {
		c.err = err
	} else if key == "" {
		c.err = ErrMissingKey
	}
	return c
}

// NewMulti combines several single-kind contexts into a multi-context.
func NewMulti(contexts ...Context) Context {
	if len(contexts) == 0 {
		return Context{defined: true, err: ErrEmptyMulti}
	}
	if len(contexts) == 1 {
		return contexts[0]
	}
	seen := make(map[string]bool, len(contexts))
	for _, sub := range contexts {
		if sub.err != nil {
			return Context{defined: true, err: sub.err}
		}
		if seen[sub.kind] {
			return Context{defined: true, err: ErrDuplicateKind}
		}
		seen[sub.kind] = true
	}
	cp := make([]Context, len(contexts))
	copy(cp, contexts)
	return Context{defined: true, kind: MultiKind, multi: cp}
}

func validateKind(kind string) error {
	if kind == "" {
		return ErrMissingKind
	}
	if kind == MultiKind {
		return ErrInvalidKind
	}
	for _, r := range kind {
		if !(r == '.' || r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return ErrInvalidKind
		}
	}
	return nil
}

func (c Context) IsDefined() bool { return c.defined }

func (c Context) Err() error {
	if !c.defined && c.err == nil {
		return ErrUninitialized
	}
	return c.err
}

func (c Context) Valid() bool { return c.Err() == nil }

func (c Context) Kind() string { return c.kind }

func (c Context) Multiple() bool { return len(c.multi) > 0 }

func (c Context) Key() string { return c.key }

func (c Context) Anonymous() bool { return c.anonymous }

// Name returns the context's optional display name.
func (c Context) Name() (string, bool) {
	if !c.hasName {
		return "", false
	}
	return c.name.StringValue(), true
}

// Kinds returns the ordered list of kind names present in this context.
func (c Context) Kinds() []string {
	if c.Multiple() {
		out := make([]string, len(c.multi))
		for i, sub := range c.multi {
			out[i] = sub.kind
		}
		return out
	}
	if !c.defined {
		return nil
	}
	return []string{c.kind}
}

// IndividualContextByKind returns the single context for the given kind, or
// an undefined Context if none matches.
func (c Context) IndividualContextByKind(kind string) Context {
	if kind == "" {
		kind = DefaultKind
	}
	if c.Multiple() {
		for _, sub := range c.multi {
			if sub.kind == kind {
				return sub
			}
		}
		return Context{}
	}
	if c.kind == kind {
		return c
	}
	return Context{}
}

// CanonicalKey returns a stable string combining all (kind,key) pairs, used
// as rollout bucketing input when a context has no addressable value for the
// chosen bucketing attribute.
func (c Context) CanonicalKey() string {
	if !c.Multiple() {
		if c.kind == "" || c.kind == DefaultKind {
			return c.key
		}
		return c.kind + ":" + c.key
	}
	parts := make([]string, len(c.multi))
	for i, sub := range c.multi {
		parts[i] = sub.kind + ":" + sub.key
	}
	sort.Strings(parts)
	return strings.Join(parts, ":")
}

// Get resolves an attribute reference within the context belonging to the
// given kind. For multi-contexts, a "kind" reference yields "multi"; any
// other reference resolves within the individual context of that kind.
func (c Context) Get(kind string, ref AttrRef) fval.Value {
	if !ref.Valid() {
		return fval.Null()
	}
	if kind == "" {
		kind = DefaultKind
	}

	target := c
	if c.Multiple() {
		if ref.Depth() == 1 && ref.Component(0) == KindAttr {
			return fval.String(MultiKind)
		}
		target = c.IndividualContextByKind(kind)
		if !target.defined {
			return fval.Null()
		}
	} else if c.kind != kind {
		return fval.Null()
	}

	value, ok := target.topLevelAttribute(ref.Component(0))
	if !ok {
		return fval.Null()
	}
	for i := 1; i < ref.Depth(); i++ {
		value = value.GetByKey(ref.Component(i))
	}
	return value
}

func (c Context) topLevelAttribute(name string) (fval.Value, bool) {
	switch name {
	case KindAttr:
		return fval.String(c.kind), true
	case KeyAttr:
		return fval.String(c.key), true
	case NameAttr:
		return c.name, c.hasName
	case AnonymousAttr:
		return fval.Bool(c.anonymous), true
	default:
		v, ok := c.attributes[name]
		return v, ok
	}
}

// IsPrivate reports whether the given attribute reference was marked private
// on this context.
func (c Context) IsPrivate(ref AttrRef) bool {
	for _, p := range c.private {
		if p.String() == ref.String() {
			return true
		}
	}
	return false
}

func (c Context) String() string {
	data, _ := json.Marshal(c)
	return string(data)
}

func (c Context) MarshalJSON() ([]byte, error) {
	if c.Multiple() {
		m := make(map[string]interface{}, len(c.multi)+1)
		m["kind"] = MultiKind
		for _, sub := range c.multi {
			m[sub.kind] = sub
		}
		return json.Marshal(m)
	}
	m := make(map[string]interface{}, len(c.attributes)+4)
	for k, v := range c.attributes {
		m[k] = v
	}
	m["kind"] = c.kind
	m["key"] = c.key
	if c.hasName {
		m["name"] = c.name
	}
	if c.anonymous {
		m["anonymous"] = true
	}
	return json.Marshal(m)
}

// Equal tests logical equality: same kind(s), same attributes.
func (c Context) Equal(other Context) bool {
	if c.defined != other.defined {
		return false
	}
	if c.kind != other.kind {
		return false
	}
	if c.Multiple() {
		if len(c.multi) != len(other.multi) {
			return false
		}
		for _, sub := range c.multi {
			if !sub.Equal(other.IndividualContextByKind(sub.kind)) {
				return false
			}
		}
		return true
	}
	if c.key != other.key || c.anonymous != other.anonymous {
		return false
	}
	if len(c.attributes) != len(other.attributes) {
		return false
	}
	for k, v := range c.attributes {
		ov, ok := other.attributes[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

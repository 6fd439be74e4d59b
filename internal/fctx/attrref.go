package fctx

import "strings"

// AttrRef is a parsed attribute reference: either a simple name ("email")
// or a slash-delimited path ("/address/street") following a JSON-Pointer-like
// syntax (a leading "/" is required to use multiple path components; "~0"
// and "~1" escape "~" and "/" within a component, same as JSON Pointer).
type AttrRef struct {
	raw        string
	components []string
	invalid    bool
}

// NewLiteralAttrRef wraps a literal attribute name (no path semantics applied even
// if it contains slashes) — used for well-known single-segment names like
// "kind" or "key".
func NewLiteralAttrRef(name string) AttrRef {
	return AttrRef{raw: name, components: []string{name}}
}

// NewAttrRef parses a possibly-pathed attribute reference string.
func NewAttrRef(s string) AttrRef {
	if s == "" {
		return AttrRef{raw: s, invalid: true}
	}
	if !strings.HasPrefix(s, "/") {
		return AttrRef{raw: s, components: []string{s}}
	}
	parts := strings.Split(s[1:], "/")
	if len(parts) == 0 {
		return AttrRef{raw: s, invalid: true}
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		if p == "" {
			return AttrRef{raw: s, invalid: true}
		}
		out[i] = unescapeRefComponent(p)
	}
	return AttrRef{raw: s, components: out}
}

func unescapeRefComponent(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	s = strings.ReplaceAll(s, "~1", "/")
	s = strings.ReplaceAll(s, "~0", "~")
	return s
}

// Valid reports whether the reference string was well-formed.
func (r AttrRef) Valid() bool { return !r.invalid }

// Depth returns the number of path components (1 for a simple attribute
// name).
func (r AttrRef) Depth() int { return len(r.components) }

// Component returns the i'th path component.
func (r AttrRef) Component(i int) string {
	if i < 0 || i >= len(r.components) {
		return ""
	}
	return r.components[i]
}

func (r AttrRef) String() string { return r.raw }

const (
	KindAttr      = "kind"
	KeyAttr       = "key"
	NameAttr      = "name"
	AnonymousAttr = "anonymous"
)

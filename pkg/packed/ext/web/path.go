package web

import (
	"fmt"
	"strings"
)

// SegmentKind is the kind of a path segment
type SegmentKind int

const (
	StaticSegment SegmentKind = iota
	ParamSegment
	WildcardSegment
)

// Segment is one slash-separated part of a route path
type Segment struct {
	Kind SegmentKind
	// Value is the literal text of static segments and the name of parameters
	Value string
}

// Path is a route path such as /users/{id} or /static/{*}
type Path string

// Segments splits the path into its parts. It does not validate the path.
func (p Path) Segments() []Segment {
	trimmed := strings.Trim(string(p), "/")
	if trimmed == "" {
		return nil
	}
	raw := strings.Split(trimmed, "/")
	segments := make([]Segment, len(raw))
	for i, s := range raw {
		switch {
		case s == "{*}":
			segments[i] = Segment{Kind: WildcardSegment, Value: "*"}
		case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
			segments[i] = Segment{Kind: ParamSegment, Value: s[1 : len(s)-1]}
		default:
			segments[i] = Segment{Kind: StaticSegment, Value: s}
		}
	}
	return segments
}

// Params returns the parameter names in order, "*" for the wildcard
func (p Path) Params() []string {
	var names []string
	for _, s := range p.Segments() {
		if s.Kind != StaticSegment {
			names = append(names, s.Value)
		}
	}
	return names
}

// Validate checks that the path starts with a slash, that parameters are
// whole segments with unique names and that a wildcard comes last
func (p Path) Validate() error {
	path := string(p)
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must start with '/'", path)
	}
	if strings.Count(path, "{") != strings.Count(path, "}") {
		return fmt.Errorf("mismatched braces in path %q", path)
	}
	seen := make(map[string]bool)
	segments := p.Segments()
	for i, s := range segments {
		switch s.Kind {
		case StaticSegment:
			if strings.ContainsAny(s.Value, "{}") {
				return fmt.Errorf("parameter in %q must be a whole segment like {id}", path)
			}
		case ParamSegment:
			if s.Value == "" || strings.ContainsAny(s.Value, "{}:*") {
				return fmt.Errorf("invalid parameter {%s} in %q", s.Value, path)
			}
			if seen[s.Value] {
				return fmt.Errorf("parameter {%s} appears twice in %q", s.Value, path)
			}
			seen[s.Value] = true
		case WildcardSegment:
			if i != len(segments)-1 {
				return fmt.Errorf("wildcard {*} must be the last segment of %q", path)
			}
		}
	}
	return nil
}

// Format renders the path in a router's syntax: param renders a parameter
// name and wildcard replaces a trailing {*}
func (p Path) Format(param func(name string) string, wildcard string) string {
	segments := p.Segments()
	if len(segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		switch s.Kind {
		case ParamSegment:
			b.WriteString(param(s.Value))
		case WildcardSegment:
			b.WriteString(wildcard)
		default:
			b.WriteString(s.Value)
		}
	}
	if strings.HasSuffix(string(p), "/") && segments[len(segments)-1].Kind == StaticSegment {
		b.WriteByte('/')
	}
	return b.String()
}

// pattern identifies routes that match the same requests regardless of parameter names
func (p Path) pattern() string {
	return p.Format(func(string) string { return "{}" }, "{*}")
}

func colonParam(name string) string {
	return ":" + name
}

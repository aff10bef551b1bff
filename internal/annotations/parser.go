package annotations

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	perrors "github.com/toyz/packed/internal/errors"
)

// CommentPrefix marks a method comment as a hook annotation
const CommentPrefix = "packed::"

// TagKey is the struct tag key carrying field annotations
const TagKey = "packed"

// annotationAST is the participle grammar root: name positional... -Param=value -Flag
type annotationAST struct {
	Name       string      `parser:"@Word"`
	Positional []*valueAST `parser:"@@*"`
	Params     []*paramAST `parser:"@@*"`
}

type valueAST struct {
	String *string `parser:"  @String"`
	Number *string `parser:"| @Number"`
	Word   *string `parser:"| @Word"`
}

func (v *valueAST) raw() string {
	switch {
	case v.String != nil:
		return *v.String
	case v.Number != nil:
		return *v.Number
	case v.Word != nil:
		return *v.Word
	}
	return ""
}

type paramAST struct {
	Name  string    `parser:"@Flag"`
	Value *valueAST `parser:"( '=' @@ )?"`
}

var annotationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?[0-9][^\s=]*`},
	{Name: "Flag", Pattern: `-[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Word", Pattern: `[^\s="\-][^\s=]*`},
})

// Parser reads annotation text and checks it against the schemas of a
// registry. A parser without registry only splits the text.
type Parser struct {
	registry *Registry
	grammar  *participle.Parser[annotationAST]
}

// NewParser creates a parser checking annotations against registry
func NewParser(registry *Registry) *Parser {
	return &Parser{
		registry: registry,
		grammar: participle.MustBuild[annotationAST](
			participle.Lexer(annotationLexer),
			participle.Elide("Whitespace"),
			participle.Unquote("String"),
			participle.UseLookahead(2),
		),
	}
}

var (
	defaultParser     *Parser
	defaultParserOnce sync.Once
)

// Parse parses annotation text against the default registry
func Parse(text string, target TargetKind, location SourceLocation) (*ParsedAnnotation, error) {
	return getDefaultParser().Parse(text, target, location)
}

// ParseTag parses a struct tag value against the default registry
func ParseTag(tag string, location SourceLocation) ([]*ParsedAnnotation, error) {
	return getDefaultParser().ParseTag(tag, location)
}

func getDefaultParser() *Parser {
	defaultParserOnce.Do(func() {
		defaultParser = NewParser(DefaultRegistry())
	})
	return defaultParser
}

// IsAnnotationComment reports whether a comment line carries a hook annotation
func IsAnnotationComment(comment string) bool {
	_, ok := stripCommentPrefix(comment)
	return ok
}

func stripCommentPrefix(comment string) (string, bool) {
	input := strings.TrimSpace(comment)
	if !strings.HasPrefix(input, "//") {
		return "", false
	}
	input = strings.TrimSpace(input[2:])
	if !strings.HasPrefix(input, CommentPrefix) {
		return "", false
	}
	return strings.TrimSpace(input[len(CommentPrefix):]), true
}

// ParseComment parses a "//packed::..." comment line
func (p *Parser) ParseComment(comment string, target TargetKind, location SourceLocation) (*ParsedAnnotation, error) {
	text, ok := stripCommentPrefix(comment)
	if !ok {
		return nil, syntaxError(location, "annotation must start with '//"+CommentPrefix+"'").
			WithSuggestion("Method annotations are '//" + CommentPrefix + "name' comments, note the double colon")
	}
	return p.Parse(text, target, location)
}

// ParseTag parses the value of a `packed:"..."` struct tag. Annotations are
// separated by ';' and every failing one is reported.
func (p *Parser) ParseTag(tag string, location SourceLocation) ([]*ParsedAnnotation, error) {
	var errs perrors.List
	var result []*ParsedAnnotation
	for _, part := range splitTag(tag) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		parsed, err := p.Parse(part, TargetField, location)
		if err != nil {
			errs.Add(err)
			continue
		}
		result = append(result, parsed)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Parse parses bare annotation text such as "route GET /users -Middleware=auth"
// placed on a member of kind target
func (p *Parser) Parse(text string, target TargetKind, location SourceLocation) (*ParsedAnnotation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, syntaxError(location, "empty annotation").
			WithSuggestion("Try: //packed::inject or //packed::route GET /path")
	}

	ast, err := p.grammar.ParseString(location.File, text)
	if err != nil {
		perr := syntaxError(location, syntaxMessage(err))
		name, _, _ := strings.Cut(text, " ")
		if schema, ok := p.lookup(AnnotationType(name)); ok {
			return nil, perr.WithSuggestion(schema.exampleHint())
		}
		return nil, perr.WithSuggestion("Parameters are written -Name=value or -Flag and follow the positional values")
	}

	parsed := &ParsedAnnotation{
		Type:       AnnotationType(ast.Name),
		Target:     target,
		Parameters: make(map[string]any),
		Location:   location,
		Raw:        text,
	}
	for _, v := range ast.Positional {
		parsed.Positional = append(parsed.Positional, v.raw())
	}

	if p.registry == nil {
		for _, param := range ast.Params {
			name := strings.TrimPrefix(param.Name, "-")
			if param.Value == nil {
				parsed.Parameters[name] = true
			} else {
				parsed.Parameters[name] = param.Value.raw()
			}
		}
		return parsed, nil
	}

	schema, ok := p.registry.Lookup(parsed.Type)
	if !ok {
		return nil, unknownAnnotation(p.registry, location, ast.Name)
	}

	var errs perrors.List
	if schema.bind(parsed, ast, &errs); errs.Len() == 0 {
		schema.check(parsed, &errs)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return parsed, nil
}

func (p *Parser) lookup(t AnnotationType) (AnnotationSchema, bool) {
	if p.registry == nil {
		return AnnotationSchema{}, false
	}
	return p.registry.Lookup(t)
}

func syntaxMessage(err error) string {
	var perr participle.Error
	if errors.As(err, &perr) {
		return fmt.Sprintf("unexpected token at column %d: %s", perr.Position().Column, perr.Message())
	}
	return err.Error()
}

// splitTag splits a tag value on ';' outside double quotes
func splitTag(tag string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	escaped := false

	for _, r := range tag {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ';' && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	parts = append(parts, current.String())
	return parts
}

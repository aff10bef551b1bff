// Package parser finds hook annotations in Go source: //packed:: comments on
// methods and `packed:"..."` struct tags.
package parser

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/toyz/packed/internal/annotations"
	perrors "github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/models"
	"github.com/toyz/packed/internal/utils"
)

// ScanErrors lists every problem found in a package
type ScanErrors []*models.GeneratorError

func (e ScanErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = "  " + err.Error()
	}
	return fmt.Sprintf("%d problems:\n%s", len(e), strings.Join(msgs, "\n"))
}

func (e ScanErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}

// Parser scans packages for hook annotations
type Parser struct {
	processor *utils.FileProcessor
	registry  *annotations.Registry
	engine    *annotations.Parser
	lenient   *annotations.Parser
	strict    bool
}

// NewParser creates a parser validating against the builtin annotation schemas
func NewParser() *Parser {
	return NewParserWithRegistry(annotations.DefaultRegistry())
}

// NewParserWithRegistry creates a parser validating against registry
func NewParserWithRegistry(registry *annotations.Registry) *Parser {
	return &Parser{
		processor: utils.NewFileProcessor(),
		registry:  registry,
		engine:    annotations.NewParser(registry),
		lenient:   annotations.NewParser(nil),
	}
}

// SetStrict makes annotations without a registered schema an error. By
// default they are kept and flagged Unknown.
func (p *Parser) SetStrict(strict bool) {
	p.strict = strict
}

// Processor returns the file processor used to read packages
func (p *Parser) Processor() *utils.FileProcessor {
	return p.processor
}

// ParseDirectory scans the package in dir
func (p *Parser) ParseDirectory(dir string) (*models.PackageMetadata, error) {
	files, pkgName, err := p.processor.ParseDirectory(dir)
	if err != nil {
		return nil, &models.GeneratorError{
			Type:    models.ErrorTypeFileSystem,
			File:    dir,
			Message: "cannot read package",
			Cause:   err,
		}
	}
	return p.scan(pkgName, dir, files)
}

// ParseSource scans a single file given as source text
func (p *Parser) ParseSource(filename, source string) (*models.PackageMetadata, error) {
	f, err := p.processor.Reader().ParseSource(filename, source)
	if err != nil {
		return nil, &models.GeneratorError{
			Type:    models.ErrorTypeAnnotationSyntax,
			File:    filename,
			Message: "cannot parse source",
			Cause:   err,
		}
	}
	return p.scan(f.Name.Name, ".", map[string]*ast.File{filename: f})
}

type scanState struct {
	p     *Parser
	fset  *token.FileSet
	beans map[string]*models.BeanMetadata
	order []string
	// structs holds every struct type declared in the package
	structs map[string]token.Position
	errs    ScanErrors
}

func (p *Parser) scan(pkgName, dir string, files map[string]*ast.File) (*models.PackageMetadata, error) {
	s := &scanState{
		p:       p,
		fset:    p.processor.Reader().FileSet(),
		beans:   make(map[string]*models.BeanMetadata),
		structs: make(map[string]token.Position),
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	// structs first so methods declared before their receiver type resolve
	for _, name := range names {
		s.collectStructs(files[name])
	}
	for _, name := range names {
		s.collectMethods(files[name])
	}

	meta := &models.PackageMetadata{PackageName: pkgName, PackagePath: dir}
	for _, name := range s.order {
		b := s.beans[name]
		if len(b.Fields) > 0 || len(b.Methods) > 0 {
			meta.Beans = append(meta.Beans, *b)
		}
	}
	if len(s.errs) > 0 {
		return meta, s.errs
	}
	return meta, nil
}

func (s *scanState) bean(name string) *models.BeanMetadata {
	b, ok := s.beans[name]
	if !ok {
		pos := s.structs[name]
		b = &models.BeanMetadata{Name: name, File: pos.Filename, Line: pos.Line}
		s.beans[name] = b
		s.order = append(s.order, name)
	}
	return b
}

func (s *scanState) fail(t models.ErrorType, pos token.Position, msg, hint string, cause error) {
	s.errs = append(s.errs, &models.GeneratorError{
		Type:       t,
		File:       pos.Filename,
		Line:       pos.Line,
		Message:    msg,
		Suggestion: hint,
		Cause:      cause,
	})
}

func (s *scanState) collectStructs(f *ast.File) {
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			s.structs[ts.Name.Name] = s.fset.Position(ts.Pos())
			if ts.TypeParams != nil {
				continue
			}
			s.collectFields(ts.Name.Name, st)
		}
	}
}

func (s *scanState) collectFields(bean string, st *ast.StructType) {
	for _, field := range st.Fields.List {
		if field.Tag == nil {
			continue
		}
		raw, err := strconv.Unquote(field.Tag.Value)
		if err != nil {
			continue
		}
		tag, ok := reflect.StructTag(raw).Lookup(annotations.TagKey)
		if !ok {
			continue
		}

		pos := s.fset.Position(field.Pos())
		loc := annotations.SourceLocation{File: pos.Filename, Line: pos.Line, Column: pos.Column}
		parsed, err := s.p.engine.ParseTag(tag, loc)
		var unknown map[*annotations.ParsedAnnotation]bool
		if err != nil && !s.p.strict {
			var errs []error
			parsed, unknown, errs = s.parseTagLenient(tag, loc)
			for _, e := range errs {
				s.annotationError(pos, e)
			}
			if len(errs) > 0 {
				continue
			}
		} else if err != nil {
			s.annotationError(pos, err)
			continue
		}

		b := s.bean(bean)
		for _, member := range fieldNames(field) {
			for _, a := range parsed {
				s.add(b, &b.Fields, models.HookSite{
					Bean:       bean,
					Member:     member,
					Kind:       models.SiteField,
					Annotation: string(a.Type),
					Text:       a.Raw,
					File:       pos.Filename,
					Line:       pos.Line,
					Unknown:    unknown[a],
				}, pos)
			}
		}
	}
}

// parseTagLenient parses each part of a tag on its own so registered
// annotations are still validated next to unknown ones
func (s *scanState) parseTagLenient(tag string, loc annotations.SourceLocation) ([]*annotations.ParsedAnnotation, map[*annotations.ParsedAnnotation]bool, []error) {
	var result []*annotations.ParsedAnnotation
	var errs []error
	unknown := make(map[*annotations.ParsedAnnotation]bool)
	for _, part := range strings.Split(tag, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		a, isUnknown, err := s.parseText(part, annotations.TargetField, loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result = append(result, a)
		unknown[a] = isUnknown
	}
	return result, unknown, errs
}

func (s *scanState) parseText(text string, target annotations.TargetKind, loc annotations.SourceLocation) (*annotations.ParsedAnnotation, bool, error) {
	a, err := s.p.lenient.Parse(text, target, loc)
	if err != nil {
		// the schema-aware parser suggests an example of the annotation
		_, err = s.p.engine.Parse(text, target, loc)
		return nil, false, err
	}
	if _, known := s.p.registry.Lookup(a.Type); known || s.p.strict {
		a, err = s.p.engine.Parse(text, target, loc)
		return a, false, err
	}
	return a, true, nil
}

func (s *scanState) collectMethods(f *ast.File) {
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Doc == nil {
			continue
		}
		var comments []*ast.Comment
		for _, c := range fn.Doc.List {
			if annotations.IsAnnotationComment(c.Text) {
				comments = append(comments, c)
			}
		}
		if len(comments) == 0 {
			continue
		}

		pos := s.fset.Position(fn.Pos())
		if fn.Recv == nil || len(fn.Recv.List) == 0 {
			s.fail(models.ErrorTypeValidation, pos,
				fmt.Sprintf("function %s cannot carry hook annotations", fn.Name.Name),
				"install functions with ContainerConfiguration.InstallFunctional and FunctionalBean.AddFunction", nil)
			continue
		}
		recv, generic := receiverName(fn.Recv.List[0].Type)
		switch {
		case generic:
			s.fail(models.ErrorTypeValidation, pos,
				fmt.Sprintf("method %s.%s has a generic receiver", recv, fn.Name.Name),
				"hook annotations are only supported on non-generic struct types", nil)
			continue
		case !ast.IsExported(fn.Name.Name):
			s.fail(models.ErrorTypeValidation, pos,
				fmt.Sprintf("method %s.%s is not exported", recv, fn.Name.Name),
				"hooks are resolved through reflection, which only sees exported methods", nil)
			continue
		}
		if _, ok := s.structs[recv]; !ok {
			s.fail(models.ErrorTypeValidation, pos,
				fmt.Sprintf("receiver %s of %s is not a struct type declared in this package", recv, fn.Name.Name),
				"", nil)
			continue
		}

		b := s.bean(recv)
		for _, c := range comments {
			cpos := s.fset.Position(c.Pos())
			loc := annotations.SourceLocation{File: cpos.Filename, Line: cpos.Line, Column: cpos.Column}
			text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(c.Text, "//")), annotations.CommentPrefix))
			a, unknown, err := s.parseText(text, annotations.TargetMethod, loc)
			if err != nil {
				s.annotationError(cpos, err)
				continue
			}
			s.add(b, &b.Methods, models.HookSite{
				Bean:       recv,
				Member:     fn.Name.Name,
				Kind:       models.SiteMethod,
				Annotation: string(a.Type),
				Text:       a.Raw,
				File:       cpos.Filename,
				Line:       cpos.Line,
				Unknown:    unknown,
			}, cpos)
		}
	}
}

// add appends site unless its member already carries the same annotation
func (s *scanState) add(b *models.BeanMetadata, sites *[]models.HookSite, site models.HookSite, pos token.Position) {
	for _, prev := range *sites {
		if prev.Member == site.Member && prev.Annotation == site.Annotation {
			s.fail(models.ErrorTypeValidation, pos,
				fmt.Sprintf("%s %s.%s has more than one %s annotation", site.Kind, b.Name, site.Member, site.Annotation),
				fmt.Sprintf("first declared at %s:%d", prev.File, prev.Line), nil)
			return
		}
	}
	*sites = append(*sites, site)
}

func (s *scanState) annotationError(pos token.Position, err error) {
	if list, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range list.Unwrap() {
			s.annotationError(pos, e)
		}
		return
	}

	t := models.ErrorTypeValidation
	if perrors.Has(err, perrors.SyntaxErrorCode) {
		t = models.ErrorTypeAnnotationSyntax
	}
	msg := err.Error()
	var perr *perrors.Error
	if errors.As(err, &perr) && perr.Pos.IsValid() {
		msg = strings.TrimPrefix(msg, perr.Pos.String()+": ")
	}
	s.fail(t, pos, msg, strings.Join(perrors.Hints(err), "; "), err)
}

func fieldNames(field *ast.Field) []string {
	if len(field.Names) > 0 {
		names := make([]string, len(field.Names))
		for i, n := range field.Names {
			names[i] = n.Name
		}
		return names
	}
	// embedded field
	expr := field.Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch t := expr.(type) {
	case *ast.Ident:
		return []string{t.Name}
	case *ast.SelectorExpr:
		return []string{t.Sel.Name}
	}
	return nil
}

func receiverName(expr ast.Expr) (name string, generic bool) {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, false
	case *ast.IndexExpr:
		name, _ = receiverName(t.X)
		return name, true
	case *ast.IndexListExpr:
		name, _ = receiverName(t.X)
		return name, true
	}
	return "", false
}

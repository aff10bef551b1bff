package hooks

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/errors"
)

// Model is the scan result of one bean type: its sites grouped by owning extension
type Model struct {
	Type       reflect.Type
	Aggregates map[reflect.Type]*Aggregate
	order      []reflect.Type
}

// Extensions returns the owning extension types in order of first appearance
func (m *Model) Extensions() []reflect.Type {
	return append([]reflect.Type(nil), m.order...)
}

// Aggregate returns the aggregate owned by ext, or nil
func (m *Model) Aggregate(ext reflect.Type) *Aggregate {
	return m.Aggregates[ext]
}

// Sites returns every site of the model
func (m *Model) Sites() []*Site {
	var result []*Site
	for _, ext := range m.order {
		result = append(result, m.Aggregates[ext].sites...)
	}
	return result
}

// Empty reports whether the type has no hooks
func (m *Model) Empty() bool {
	return len(m.order) == 0
}

type scanResult struct {
	model *Model
	err   error
}

// Scanner scans bean types for hook sites, caching one result per type
type Scanner struct {
	registry *Registry
	cache    sync.Map // reflect.Type -> scanResult
}

// NewScanner creates a scanner over the given registry
func NewScanner(registry *Registry) *Scanner {
	return &Scanner{registry: registry}
}

var (
	defaultScanner     *Scanner
	defaultScannerOnce sync.Once
)

// DefaultScanner returns the scanner over Default()
func DefaultScanner() *Scanner {
	defaultScannerOnce.Do(func() {
		defaultScanner = NewScanner(Default())
	})
	return defaultScanner
}

// Registry returns the registry the scanner resolves hooks with
func (s *Scanner) Registry() *Registry {
	return s.registry
}

// Scan returns the hook model of t (a struct or pointer to struct)
func (s *Scanner) Scan(t reflect.Type) (*Model, error) {
	t = structType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.New(errors.HookErrorCode, fmt.Sprintf("cannot scan %v: not a struct type", t))
	}

	if cached, ok := s.cache.Load(t); ok {
		r := cached.(scanResult)
		return r.model, r.err
	}

	model, err := s.scan(t)
	actual, _ := s.cache.LoadOrStore(t, scanResult{model: model, err: err})
	r := actual.(scanResult)
	return r.model, r.err
}

func (s *Scanner) scan(t reflect.Type) (*Model, error) {
	methods := s.registry.markScanned(t)
	var sites []*Site
	var errs errors.List

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup(annotations.TagKey)
		if !ok {
			continue
		}
		loc := annotations.SourceLocation{File: fmt.Sprintf("%s.%s", t, field.Name)}
		parsed, err := s.registry.parser.ParseTag(tag, loc)
		if err != nil {
			errs.Add(errors.WrapHookError(t.String(), field.Name, err))
			continue
		}
		for _, p := range parsed {
			sites = append(sites, &Site{
				BeanType:   t,
				Target:     annotations.TargetField,
				Member:     field.Name,
				Index:      i,
				Field:      field,
				Annotation: p,
			})
		}
	}

	ptr := reflect.PointerTo(t)
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		site, err := s.methodSites(t, ptr, name, methods[name])
		if err != nil {
			errs.Add(err)
			continue
		}
		sites = append(sites, site...)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return s.assemble(t, sites)
}

func (s *Scanner) methodSites(t, ptr reflect.Type, name string, texts []string) ([]*Site, error) {
	method, ok := ptr.MethodByName(name)
	if !ok {
		return nil, errors.WrapHookError(t.String(), name, fmt.Errorf("method not found in the method set of %s", ptr)).
			WithSuggestion("hook methods must be exported; run 'packed generate' after renaming methods")
	}

	var sites []*Site
	for _, text := range texts {
		loc := annotations.SourceLocation{File: fmt.Sprintf("%s.%s", t, name)}
		parsed, err := s.registry.parser.Parse(text, annotations.TargetMethod, loc)
		if err != nil {
			return nil, errors.WrapHookError(t.String(), name, err)
		}
		sites = append(sites, &Site{
			BeanType:   t,
			Target:     annotations.TargetMethod,
			Member:     name,
			Index:      method.Index,
			Method:     method,
			Annotation: parsed,
		})
	}
	return sites, nil
}

// MethodSite parses a single method annotation for t outside the declared table
func (s *Scanner) MethodSite(t reflect.Type, method, text string) (*Site, error) {
	t = structType(t)
	sites, err := s.methodSites(t, reflect.PointerTo(t), method, []string{text})
	if err != nil {
		return nil, err
	}
	site := sites[0]
	spec, rerr := s.registry.resolve(site.Annotation)
	if rerr != nil {
		return nil, errors.WrapHookError(t.String(), method, rerr)
	}
	site.Extension = spec.Extension
	return site, nil
}

// FunctionSite parses an annotation attached to a standalone function
func (s *Scanner) FunctionSite(name string, fn reflect.Value, index int, text string) (*Site, error) {
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, errors.WrapHookError("<func>", name, fmt.Errorf("expected a non-nil func, got %s", fn.Kind()))
	}
	loc := annotations.SourceLocation{File: name}
	parsed, err := s.registry.parser.Parse(text, annotations.TargetFunction, loc)
	if err != nil {
		return nil, errors.WrapHookError("<func>", name, err)
	}
	spec, err := s.registry.resolve(parsed)
	if err != nil {
		return nil, errors.WrapHookError("<func>", name, err)
	}
	return &Site{
		Target:     annotations.TargetFunction,
		Member:     name,
		Index:      index,
		Function:   fn,
		Annotation: parsed,
		Extension:  spec.Extension,
	}, nil
}

// Extend returns a new, uncached model adding extra sites to base
func (s *Scanner) Extend(base *Model, extra ...*Site) (*Model, error) {
	if len(extra) == 0 {
		return base, nil
	}
	var sites []*Site
	var beanType reflect.Type
	if base != nil {
		sites = base.Sites()
		beanType = base.Type
	}
	sites = append(sites, extra...)
	return s.assemble(beanType, sites)
}

// assemble routes sites to their extensions and builds one aggregate per extension
func (s *Scanner) assemble(t reflect.Type, sites []*Site) (*Model, error) {
	builders := make(map[reflect.Type]*AggregateBuilder)
	model := &Model{Type: t, Aggregates: make(map[reflect.Type]*Aggregate)}
	var errs errors.List

	for _, site := range sites {
		if site.Extension == nil {
			spec, err := s.registry.resolve(site.Annotation)
			if err != nil {
				errs.Add(errors.WrapHookError(typeName(t), site.Member, err))
				continue
			}
			site.Extension = spec.Extension
		}

		b, ok := builders[site.Extension]
		if !ok {
			b = NewAggregateBuilder(t, site.Extension)
			builders[site.Extension] = b
			model.order = append(model.order, site.Extension)
		}
		errs.Add(b.Add(site))
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	for ext, b := range builders {
		model.Aggregates[ext] = b.Build()
	}
	return model, nil
}

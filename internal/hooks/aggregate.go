package hooks

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/errors"
)

// Site is one annotated bean member
type Site struct {
	BeanType   reflect.Type
	Target     annotations.TargetKind
	Member     string
	Index      int
	Field      reflect.StructField // set for field sites
	Method     reflect.Method      // set for method sites, from the *T method set
	Function   reflect.Value       // set for function sites
	Annotation *annotations.ParsedAnnotation
	Extension  reflect.Type
}

// Key identifies the site within an aggregate: member plus annotation name
func (s *Site) Key() string {
	return fmt.Sprintf("%s:%s@%s", s.Target, s.Member, s.Annotation.Type)
}

// String renders the site for logs and errors
func (s *Site) String() string {
	return fmt.Sprintf("%s.%s [%s]", typeName(s.BeanType), s.Member, s.Annotation)
}

// Aggregate is the immutable set of sites of one bean type owned by one extension
type Aggregate struct {
	BeanType  reflect.Type
	Extension reflect.Type
	sites     []*Site
}

// Sites returns the sites ordered by target kind then member index
func (a *Aggregate) Sites() []*Site {
	return append([]*Site(nil), a.sites...)
}

// Len returns the number of sites
func (a *Aggregate) Len() int {
	return len(a.sites)
}

// Filter returns the sites carrying the given annotation
func (a *Aggregate) Filter(annotation annotations.AnnotationType) []*Site {
	var result []*Site
	for _, s := range a.sites {
		if s.Annotation.Type == annotation {
			result = append(result, s)
		}
	}
	return result
}

// AggregateBuilder accumulates the sites of one bean type for one extension
type AggregateBuilder struct {
	beanType  reflect.Type
	extension reflect.Type
	sites     []*Site
	keys      map[string]bool
	built     *Aggregate
}

// NewAggregateBuilder creates a builder for a bean type and extension
func NewAggregateBuilder(beanType, extension reflect.Type) *AggregateBuilder {
	return &AggregateBuilder{
		beanType:  beanType,
		extension: extension,
		keys:      make(map[string]bool),
	}
}

// Add records a site; the same member and annotation may only be added once
func (b *AggregateBuilder) Add(site *Site) error {
	if b.built != nil {
		return errors.WrapHookError(typeName(b.beanType), site.Member, ErrAggregateBuilt)
	}
	key := site.Key()
	if b.keys[key] {
		return errors.WrapHookError(typeName(b.beanType), site.Member,
			fmt.Errorf("%w: %s", ErrDuplicateHook, site.Annotation.Type))
	}
	b.keys[key] = true
	b.sites = append(b.sites, site)
	return nil
}

// Build finalizes the aggregate. Building again returns the same aggregate.
func (b *AggregateBuilder) Build() *Aggregate {
	if b.built != nil {
		return b.built
	}

	sites := append([]*Site(nil), b.sites...)
	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].Target != sites[j].Target {
			return sites[i].Target < sites[j].Target
		}
		return sites[i].Index < sites[j].Index
	})

	b.built = &Aggregate{
		BeanType:  b.beanType,
		Extension: b.extension,
		sites:     sites,
	}
	return b.built
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<func>"
	}
	return t.String()
}

package hooks

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/packed/internal/annotations"
	perrors "github.com/toyz/packed/internal/errors"
)

type ServicesExt struct{}
type SchedulerExt struct{}

type Clock interface{ Now() int64 }

type Reporter struct {
	Clock   Clock  `packed:"inject"`
	Backup  Clock  `packed:"inject -Name=backup -Optional"`
	Ignored string `json:"ignored"`
	label   string `packed:"inject -Name=label"`
}

func (r *Reporter) Init()                       {}
func (r *Reporter) Report(ctx context.Context) {}

type Plain struct{ Name string }

type Twice struct{}

func (*Twice) Tick() {}

type Late struct{}

func (*Late) Tick() {}

type Misdeclared struct{}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	schemas := annotations.NewRegistry()
	local := reflect.TypeOf(ServicesExt{}).PkgPath()
	for _, schema := range annotations.Builtin() {
		switch schema.Type {
		case annotations.InjectAnnotation, annotations.InitializeAnnotation, annotations.ScheduleAnnotation:
			schema.Extension = local
		}
		require.NoError(t, schemas.Register(schema))
	}

	r := NewRegistry(schemas)
	services := reflect.TypeOf(&ServicesExt{})
	for _, a := range []annotations.AnnotationType{annotations.InjectAnnotation, annotations.InitializeAnnotation} {
		require.NoError(t, r.Register(Spec{Annotation: a, Extension: services}))
	}
	require.NoError(t, r.Register(Spec{Annotation: annotations.ScheduleAnnotation, Extension: reflect.TypeOf(&SchedulerExt{})}))
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register(Spec{Annotation: annotations.InjectAnnotation, Extension: reflect.TypeOf(&SchedulerExt{})})
	assert.True(t, errors.Is(err, ErrAlreadyRegistered))

	err = r.Register(Spec{Annotation: "nope", Extension: reflect.TypeOf(&SchedulerExt{})})
	assert.Error(t, err, "schema required")

	err = r.Register(Spec{Annotation: annotations.RouteAnnotation})
	assert.Error(t, err, "extension required")

	require.NoError(t, r.RegisterWithSchema(Spec{Extension: reflect.TypeOf(&SchedulerExt{})}, annotations.AnnotationSchema{
		Type:    "audit",
		Targets: annotations.TargetMethod,
	}))
	spec, ok := r.Lookup("audit")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(&SchedulerExt{}), spec.Extension)
	schema, ok := r.Schemas().Lookup("audit")
	require.True(t, ok)
	assert.Equal(t, "github.com/toyz/packed/internal/hooks", schema.Extension)

	specs := r.Specs()
	assert.Equal(t, annotations.AnnotationType("audit"), specs[0].Annotation)
}

func TestRegistry_RegisterBindsExtensionPackage(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register(Spec{Annotation: annotations.RouteAnnotation, Extension: reflect.TypeOf(&SchedulerExt{})})
	require.Error(t, err)
	assert.True(t, perrors.Has(err, perrors.RegistrationErrorCode))
	assert.Contains(t, err.Error(), "handled by an extension of "+annotations.WebExtensionPackage)
	assert.Equal(t, []string{"import " + annotations.WebExtensionPackage + " to handle 'route' annotations"}, perrors.Hints(err))

	_, ok := r.Lookup(annotations.RouteAnnotation)
	assert.False(t, ok)

	err = r.RegisterWithSchema(Spec{Extension: reflect.TypeOf(&SchedulerExt{})}, annotations.AnnotationSchema{
		Type:      "metric",
		Targets:   annotations.TargetMethod,
		Extension: "example.com/metrics",
	})
	assert.True(t, perrors.Has(err, perrors.RegistrationErrorCode))
	_, ok = r.Schemas().Lookup("metric")
	assert.False(t, ok, "a rejected binding leaves no schema behind")
}

func TestScanner_Scan(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.DeclareMethods(reflect.TypeOf(&Reporter{}), map[string][]string{
		"Init":   {"initialize"},
		"Report": {"schedule -Every=1m"},
	}))

	s := NewScanner(r)
	model, err := s.Scan(reflect.TypeOf(&Reporter{}))
	require.NoError(t, err)

	assert.Equal(t, reflect.TypeOf(Reporter{}), model.Type)
	assert.Equal(t, []reflect.Type{reflect.TypeOf(&ServicesExt{}), reflect.TypeOf(&SchedulerExt{})}, model.Extensions())

	services := model.Aggregate(reflect.TypeOf(&ServicesExt{}))
	require.NotNil(t, services)
	sites := services.Sites()
	require.Len(t, sites, 4)

	// fields first in declaration order, then methods
	assert.Equal(t, "Clock", sites[0].Member)
	assert.Equal(t, "Backup", sites[1].Member)
	assert.True(t, sites[1].Annotation.GetBool("Optional"))
	assert.Equal(t, "label", sites[2].Member, "unexported fields are scanned")
	assert.Equal(t, annotations.TargetMethod, sites[3].Target)
	assert.Equal(t, "Init", sites[3].Method.Name)

	sched := model.Aggregate(reflect.TypeOf(&SchedulerExt{}))
	require.Equal(t, 1, sched.Len())
	assert.Equal(t, "Report", sched.Sites()[0].Member)
	assert.Len(t, sched.Filter(annotations.ScheduleAnnotation), 1)
	assert.Empty(t, sched.Filter(annotations.InjectAnnotation))
}

func TestScanner_CachesPerType(t *testing.T) {
	s := NewScanner(newTestRegistry(t))

	var wg sync.WaitGroup
	models := make([]*Model, 8)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			models[i], _ = s.Scan(reflect.TypeOf(Plain{}))
		}(i)
	}
	wg.Wait()

	for _, m := range models {
		assert.Same(t, models[0], m)
	}
	assert.True(t, models[0].Empty())

	byPointer, err := s.Scan(reflect.TypeOf(&Plain{}))
	require.NoError(t, err)
	assert.Same(t, models[0], byPointer)
}

func TestScanner_DeclareAfterScan(t *testing.T) {
	r := newTestRegistry(t)
	s := NewScanner(r)

	_, err := s.Scan(reflect.TypeOf(&Late{}))
	require.NoError(t, err)

	err = r.DeclareMethods(reflect.TypeOf(&Late{}), map[string][]string{"Tick": {"schedule 1s"}})
	assert.True(t, errors.Is(err, ErrAlreadyScanned))
}

func TestScanner_Errors(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.DeclareMethods(reflect.TypeOf(&Twice{}), map[string][]string{"Tick": {"schedule 1s"}}))
	require.NoError(t, r.DeclareMethods(reflect.TypeOf(Twice{}), map[string][]string{"Tick": {"schedule 2s"}}))
	require.NoError(t, r.DeclareMethods(reflect.TypeOf(&Misdeclared{}), map[string][]string{"Missing": {"initialize"}}))

	type unknownHook struct {
		Port int `packed:"config -Key=port"`
	}
	type badTag struct {
		Port int `packed:"config"`
	}

	s := NewScanner(r)

	tests := []struct {
		name    string
		typ     reflect.Type
		wantErr error
		wantMsg string
	}{
		{"duplicate member annotation", reflect.TypeOf(Twice{}), ErrDuplicateHook, ""},
		{"annotation without extension", reflect.TypeOf(unknownHook{}), ErrUnknownHook, ""},
		{"method not in method set", reflect.TypeOf(Misdeclared{}), nil, "method not found"},
		{"invalid tag", reflect.TypeOf(badTag{}), nil, "Key"},
		{"not a struct", reflect.TypeOf(42), nil, "not a struct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Scan(tt.typ)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}

	_, err := r.resolve(&annotations.ParsedAnnotation{Type: annotations.ConfigAnnotation})
	assert.True(t, errors.Is(err, ErrUnknownHook))
	assert.Equal(t, []string{"import " + annotations.CoreExtensionPackage + " to handle 'config' annotations"}, perrors.Hints(err))

	// failures are cached like successes
	_, err1 := s.Scan(reflect.TypeOf(Twice{}))
	_, err2 := s.Scan(reflect.TypeOf(Twice{}))
	assert.Same(t, err1, err2)
}

func TestScanner_ExtendAndFunctionSites(t *testing.T) {
	r := newTestRegistry(t)
	s := NewScanner(r)

	base, err := s.Scan(reflect.TypeOf(Late{}))
	require.NoError(t, err)

	extra, err := s.MethodSite(reflect.TypeOf(&Late{}), "Tick", "schedule 5s")
	require.NoError(t, err)

	extended, err := s.Extend(base, extra)
	require.NoError(t, err)
	assert.NotSame(t, base, extended)
	assert.True(t, base.Empty(), "cached model is untouched")
	assert.Equal(t, 1, extended.Aggregate(reflect.TypeOf(&SchedulerExt{})).Len())

	_, err = s.Extend(extended, extra)
	assert.True(t, errors.Is(err, ErrDuplicateHook))

	fn := reflect.ValueOf(func(ctx context.Context) error { return nil })
	site, err := s.FunctionSite("sweep", fn, 0, "schedule -Every=10s")
	require.NoError(t, err)
	assert.Equal(t, annotations.TargetFunction, site.Target)
	assert.Equal(t, reflect.TypeOf(&SchedulerExt{}), site.Extension)

	_, err = s.FunctionSite("init", fn, 1, "initialize")
	assert.Error(t, err, "initialize is method-only")
}

func TestAggregateBuilder(t *testing.T) {
	b := NewAggregateBuilder(reflect.TypeOf(Reporter{}), reflect.TypeOf(&ServicesExt{}))
	method := &Site{Target: annotations.TargetMethod, Member: "Init", Index: 0,
		Annotation: &annotations.ParsedAnnotation{Type: annotations.InitializeAnnotation}}
	field := &Site{Target: annotations.TargetField, Member: "Clock", Index: 3,
		Annotation: &annotations.ParsedAnnotation{Type: annotations.InjectAnnotation}}
	other := &Site{Target: annotations.TargetField, Member: "Clock", Index: 3,
		Annotation: &annotations.ParsedAnnotation{Type: annotations.ConfigAnnotation}}

	require.NoError(t, b.Add(method))
	require.NoError(t, b.Add(field))
	require.NoError(t, b.Add(other), "same member with a different annotation is fine")
	assert.True(t, errors.Is(b.Add(field), ErrDuplicateHook))

	agg := b.Build()
	assert.Same(t, agg, b.Build())
	sites := agg.Sites()
	require.Len(t, sites, 3)
	assert.Equal(t, annotations.TargetField, sites[0].Target)
	assert.Equal(t, annotations.TargetMethod, sites[2].Target)

	sites[0] = nil
	assert.NotNil(t, agg.Sites()[0], "Sites returns a copy")

	assert.True(t, errors.Is(b.Add(&Site{Member: "Late",
		Annotation: &annotations.ParsedAnnotation{Type: annotations.StartAnnotation}}), ErrAggregateBuilt))
}

package annotations

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/toyz/packed/internal/errors"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	require.NotNil(t, registry)
	assert.Empty(t, registry.Names())
}

func TestDefaultRegistry(t *testing.T) {
	registry1 := DefaultRegistry()
	registry2 := DefaultRegistry()
	assert.Same(t, registry1, registry2)

	for _, schema := range Builtin() {
		got, ok := registry1.Lookup(schema.Type)
		require.True(t, ok, schema.Type)
		assert.Equal(t, schema.Extension, got.Extension)
	}
}

func TestRegister(t *testing.T) {
	registry := NewRegistry()

	schema := AnnotationSchema{
		Type:      "audit",
		Targets:   TargetMethod,
		Extension: "example.com/audit",
		Parameters: map[string]ParameterSpec{
			"Level": {Type: StringType, Default: "info"},
		},
	}

	require.NoError(t, registry.Register(schema))
	got, ok := registry.Lookup("audit")
	require.True(t, ok)
	assert.Equal(t, "info", got.Parameters["Level"].Default)

	err := registry.Register(schema)
	require.Error(t, err)
	assert.True(t, perrors.Has(err, perrors.RegistrationErrorCode))
	assert.Contains(t, err.Error(), "already registered")

	var perr *perrors.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "example.com/audit", perr.Fields["extension"])
}

func TestRegisterInvalidSchema(t *testing.T) {
	tests := []struct {
		name   string
		schema AnnotationSchema
	}{
		{
			name:   "empty name",
			schema: AnnotationSchema{Targets: TargetMethod},
		},
		{
			name:   "no targets",
			schema: AnnotationSchema{Type: "audit"},
		},
		{
			name:   "unknown target bits",
			schema: AnnotationSchema{Type: "audit", Targets: TargetMethod | 64},
		},
		{
			name: "default of the wrong type",
			schema: AnnotationSchema{
				Type:    "audit",
				Targets: TargetMethod,
				Parameters: map[string]ParameterSpec{
					"Every": {Type: DurationType, Default: "5s"},
				},
			},
		},
		{
			name: "invalid parameter type",
			schema: AnnotationSchema{
				Type:    "audit",
				Targets: TargetMethod,
				Parameters: map[string]ParameterSpec{
					"Level": {Type: ParameterType(42)},
				},
			},
		},
		{
			name: "positional without spec",
			schema: AnnotationSchema{
				Type:       "audit",
				Targets:    TargetMethod,
				Positional: []string{"Level"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.schema)
			assert.True(t, perrors.Has(err, perrors.RegistrationErrorCode), "got %v", err)
		})
	}
}

func TestRegisterDurationDefault(t *testing.T) {
	err := NewRegistry().Register(AnnotationSchema{
		Type:    "tick",
		Targets: TargetMethod,
		Parameters: map[string]ParameterSpec{
			"Every": {Type: DurationType, Default: time.Second},
		},
	})
	assert.NoError(t, err)
}

func TestRegistry_SchemasSorted(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, RegisterBuiltinSchemas(registry))

	names := registry.Names()
	for i := 1; i < len(names); i++ {
		assert.Less(t, string(names[i-1]), string(names[i]))
	}

	schemas := registry.Schemas()
	require.Len(t, schemas, len(Builtin()))
	for i, schema := range schemas {
		assert.Equal(t, names[i], schema.Type)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := AnnotationType(fmt.Sprintf("hook%d", i))
			_ = registry.Register(AnnotationSchema{Type: name, Targets: TargetMethod})
			_, _ = registry.Lookup(name)
			_ = registry.Schemas()
		}(i)
	}
	wg.Wait()

	assert.Len(t, registry.Names(), 20)
}

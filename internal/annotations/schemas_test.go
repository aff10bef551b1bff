package annotations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/toyz/packed/internal/errors"
)

// Every example shipped with a builtin schema must parse
func TestBuiltinSchemaExamples(t *testing.T) {
	p := NewParser(DefaultRegistry())

	for _, schema := range Builtin() {
		for _, example := range schema.Examples {
			t.Run(example, func(t *testing.T) {
				var err error
				switch {
				case strings.HasPrefix(example, "//"):
					target := TargetMethod
					if !schema.Targets.Allows(TargetMethod) {
						target = TargetField
					}
					_, err = p.ParseComment(example, target, SourceLocation{})
				case strings.HasPrefix(example, TagKey+":"):
					tag := strings.TrimSuffix(strings.TrimPrefix(example, TagKey+`:"`), `"`)
					_, err = p.ParseTag(tag, SourceLocation{})
				default:
					t.Fatalf("example %q has no recognised form", example)
				}
				require.NoError(t, err)
			})
		}
	}
}

func TestBuiltinSchemas(t *testing.T) {
	for _, schema := range Builtin() {
		assert.NotEmpty(t, schema.Description, schema.Type)
		assert.NotZero(t, schema.Targets, schema.Type)
		assert.NotEmpty(t, schema.Examples, schema.Type)
		assert.True(t, strings.HasPrefix(schema.Extension, CoreExtensionPackage), schema.Type)
	}
}

func TestBuiltinSchemas_Extensions(t *testing.T) {
	registry := DefaultRegistry()

	tests := map[AnnotationType]string{
		InjectAnnotation:   CoreExtensionPackage,
		ConfigAnnotation:   CoreExtensionPackage,
		ScheduleAnnotation: SchedulingExtensionPackage,
		CommandAnnotation:  CLIExtensionPackage,
		TracedAnnotation:   TelemetryExtensionPackage,
		RouteAnnotation:    WebExtensionPackage,
	}
	for name, pkg := range tests {
		schema, ok := registry.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, pkg, schema.Extension, name)
	}
}

func TestAnnotationSchema_ImportHint(t *testing.T) {
	schema, _ := DefaultRegistry().Lookup(RouteAnnotation)
	assert.Equal(t, "import "+WebExtensionPackage+" to handle 'route' annotations", schema.ImportHint())

	assert.Empty(t, AnnotationSchema{Type: "audit"}.ImportHint())
}

func TestRegisterBuiltinSchemasTwice(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, RegisterBuiltinSchemas(registry))

	err := RegisterBuiltinSchemas(registry)
	assert.True(t, perrors.Has(err, perrors.RegistrationErrorCode))
}

func TestSyntaxSuggestionUsesSchemaExample(t *testing.T) {
	p := NewParser(DefaultRegistry())
	route, _ := DefaultRegistry().Lookup(RouteAnnotation)

	_, err := p.Parse("route -Middleware=a GET", TargetMethod, SourceLocation{})
	assert.True(t, perrors.Has(err, perrors.SyntaxErrorCode))
	assert.Equal(t, []string{"Example: " + route.Examples[0]}, perrors.Hints(err))
}

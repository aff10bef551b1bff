package packed

import (
	"reflect"

	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/hooks"
	"github.com/toyz/packed/internal/infuser"
)

type (
	// Key identifies a service: a type plus an optional qualifier
	Key = infuser.Key

	// HookSite is one annotated bean member
	HookSite = hooks.Site

	// Aggregate holds the hook sites of one bean type owned by one extension
	Aggregate = hooks.Aggregate

	// AnnotationType is the name of a hook annotation
	AnnotationType = annotations.AnnotationType

	// Annotation is a parsed hook annotation
	Annotation = annotations.ParsedAnnotation

	// AnnotationSchema describes the parameters and targets of an annotation
	AnnotationSchema = annotations.AnnotationSchema

	// Infuser binds keys to the raw arguments an extension supplies to an operation
	Infuser = infuser.Infuser

	// InfuserBuilder accumulates Infuser bindings
	InfuserBuilder = infuser.Builder
)

// KeyOf returns the key of type T with an optional qualifier
func KeyOf[T any](qualifier ...string) Key {
	return infuser.KeyOf[T](qualifier...)
}

// KeyFor returns the key of t with an optional qualifier
func KeyFor(t reflect.Type, qualifier ...string) Key {
	return infuser.KeyFor(t, qualifier...)
}

// NewInfuser starts an infuser over the raw argument types an extension supplies
func NewInfuser(params ...reflect.Type) *InfuserBuilder {
	return infuser.New(params...)
}

// RegisterHook binds an annotation with a known schema to the extension type E
// that handles it. Extensions call it from an init function.
func RegisterHook[E any](annotation AnnotationType) error {
	return hooks.Default().Register(hooks.Spec{
		Annotation: annotation,
		Extension:  reflect.TypeFor[E](),
	})
}

// RegisterHookWithSchema registers a new annotation schema owned by the extension type E
func RegisterHookWithSchema[E any](schema AnnotationSchema) error {
	return hooks.Default().RegisterWithSchema(hooks.Spec{Extension: reflect.TypeFor[E]()}, schema)
}

// DeclareMethodHooks records the method annotations of T, keyed by method name.
// Generated packed_hooks.go files call it from init; declarations made after T
// was first scanned fail with ErrAlreadyScanned.
func DeclareMethodHooks[T any](methods map[string][]string) error {
	return hooks.Default().DeclareMethods(reflect.TypeFor[T](), methods)
}

var emptyInfuser = func() *infuser.Infuser {
	in, _ := infuser.New().Build()
	return in
}()

func init() {
	registry := hooks.Default()
	for _, a := range []annotations.AnnotationType{
		annotations.InjectAnnotation,
		annotations.ProvideAnnotation,
		annotations.InitializeAnnotation,
		annotations.StartAnnotation,
		annotations.StopAnnotation,
	} {
		mustRegister(registry, a, reflect.TypeFor[*BaseExtension]())
	}
	mustRegister(registry, annotations.ConfigAnnotation, reflect.TypeFor[*ConfigExtension]())
}

func mustRegister(registry *hooks.Registry, a annotations.AnnotationType, ext reflect.Type) {
	if err := registry.Register(hooks.Spec{Annotation: a, Extension: ext}); err != nil {
		panic(err)
	}
}

package packed

import (
	stderrors "errors"
	"fmt"

	"github.com/toyz/packed/internal/extension"
	"github.com/toyz/packed/internal/hooks"
	"github.com/toyz/packed/internal/infuser"
)

var (
	// ErrConfigurationClosed is returned when a container is configured after it closed
	ErrConfigurationClosed = stderrors.New("container configuration is closed")

	// ErrInvalidState is returned for lifecycle transitions the current state does not allow
	ErrInvalidState = stderrors.New("invalid application state")

	// ErrDependencyCycle is returned when resolving a bean requires the bean itself
	ErrDependencyCycle = stderrors.New("dependency cycle")

	// ErrNoService is returned when no container in the chain provides a key
	ErrNoService = stderrors.New("no service for key")

	// ErrDuplicateService is returned when a key is provided twice in one container
	ErrDuplicateService = stderrors.New("duplicate service key")

	// ErrAssemblyNotFound is returned by the finder for unknown assembly names
	ErrAssemblyNotFound = stderrors.New("assembly not found")

	// ErrNotAssembly is returned by the finder when a factory does not produce an Assembly
	ErrNotAssembly = stderrors.New("not an assembly")

	// Extension registry errors
	ErrNotExtension              = extension.ErrNotExtension
	ErrExtensionInaccessible     = extension.ErrInaccessible
	ErrReentrantExtension        = extension.ErrReentrant
	ErrCyclicExtensionDependency = extension.ErrCyclicDependency
	ErrExtensionsSealed          = extension.ErrSealed

	// Hook errors
	ErrUnknownHook    = hooks.ErrUnknownHook
	ErrDuplicateHook  = hooks.ErrDuplicateHook
	ErrAlreadyScanned = hooks.ErrAlreadyScanned

	// Binding errors
	ErrDuplicateKey = infuser.ErrDuplicateKey
	ErrUnresolved   = infuser.ErrUnresolved
)

// Build phases reported by BuildError
const (
	PhaseBootstrap  = "bootstrap"
	PhasePreBuild   = "prebuild"
	PhaseBuild      = "build"
	PhasePostBuild  = "postbuild"
	PhaseIntrospect = "introspect"
	PhaseClose      = "close"
	PhaseCompleted  = "completed"
	PhaseValidate   = "validate"
	PhaseFind       = "find"
)

// BuildError reports a failure while building a container
type BuildError struct {
	Container string
	Phase     string
	Err       error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s (%s): %v", e.Container, e.Phase, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// buildError wraps err unless it already is a BuildError from a nested container
func buildError(container, phase string, err error) error {
	var be *BuildError
	if stderrors.As(err, &be) {
		return err
	}
	return &BuildError{Container: container, Phase: phase, Err: err}
}

package packed

import (
	"fmt"

	"github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/utils"
)

// AssemblyFactory creates a fresh assembly value
type AssemblyFactory func() any

var assemblies = utils.NewRegistry[string, AssemblyFactory]()

// RegisterAssembly makes an assembly findable by name, usually a
// package qualified type name such as "shop.Assembly"
func RegisterAssembly(name string, factory AssemblyFactory) error {
	if name == "" || factory == nil {
		return errors.New(errors.RegistrationErrorCode, "assembly registration needs a name and a factory")
	}
	return assemblies.RegisterWithValidator(name, factory, func(name string, _ AssemblyFactory, existing map[string]AssemblyFactory) error {
		if _, ok := existing[name]; ok {
			return errors.New(errors.RegistrationErrorCode, fmt.Sprintf("assembly %q is already registered", name))
		}
		return nil
	})
}

// FindAssembly instantiates the assembly registered under name
func FindAssembly(name string) (Assembly, error) {
	factory, ok := assemblies.Get(name)
	if !ok {
		return nil, &BuildError{
			Container: name,
			Phase:     PhaseFind,
			Err: errors.Wrap(errors.BuildErrorCode, fmt.Sprintf("assembly %q", name), ErrAssemblyNotFound).
				WithSuggestion(suggestAssembly(name)),
		}
	}

	v := factory()
	assembly, ok := v.(Assembly)
	if !ok {
		return nil, &BuildError{
			Container: name,
			Phase:     PhaseFind,
			Err:       errors.Wrap(errors.BuildErrorCode, fmt.Sprintf("%q produced %T", name, v), ErrNotAssembly),
		}
	}
	return assembly, nil
}

// BuildNamed finds the assembly registered under name and builds it
func BuildNamed(name string, wirelets ...Wirelet) (*Application, error) {
	assembly, err := FindAssembly(name)
	if err != nil {
		return nil, err
	}
	return Build(assembly, append([]Wirelet{Named(name)}, wirelets...)...)
}

// Assemblies returns the registered assembly names, sorted
func Assemblies() []string {
	return utils.SortedKeys(assemblies)
}

func suggestAssembly(name string) string {
	names := Assemblies()
	if len(names) == 0 {
		return "no assemblies are registered; call packed.RegisterAssembly from an init function"
	}
	return fmt.Sprintf("registered assemblies: %v", names)
}

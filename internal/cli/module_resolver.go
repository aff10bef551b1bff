package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/toyz/packed/internal/utils"
)

// PackedModule is the module path of the framework itself
const PackedModule = "github.com/toyz/packed"

// Module describes the Go module generated packages belong to
type Module struct {
	Path string
	// Root is the directory holding go.mod; empty when the path was given
	// explicitly
	Root string
	// GoMod is the go.mod file the module was read from
	GoMod string
}

// ModuleResolver handles resolving Go module information
type ModuleResolver struct {
	gomod *utils.GoModParser
}

// NewModuleResolver creates a new module resolver
func NewModuleResolver() *ModuleResolver {
	return &ModuleResolver{gomod: utils.NewGoModParser()}
}

// Resolve finds the module enclosing dir. A custom module path is used as is,
// with the root still taken from the nearest go.mod when there is one.
func (r *ModuleResolver) Resolve(customModule, dir string) (*Module, error) {
	if customModule != "" {
		if err := utils.IsModulePath("module")(customModule); err != nil {
			return nil, err
		}
	}

	goMod, err := r.gomod.FindGoModFile(dir)
	if err != nil {
		if customModule != "" {
			return &Module{Path: customModule}, nil
		}
		return nil, fmt.Errorf("failed to determine module name: %w (consider using --module flag)", err)
	}

	mod := &Module{Path: customModule, Root: filepath.Dir(goMod), GoMod: goMod}
	if mod.Path == "" {
		mod.Path, err = r.gomod.ParseModuleName(goMod)
		if err != nil {
			return nil, err
		}
	}
	return mod, nil
}

// RequiresPacked reports whether the module depends on the packed framework
func (r *ModuleResolver) RequiresPacked(mod *Module) (bool, error) {
	if mod.GoMod == "" {
		return true, nil
	}
	return r.gomod.Requires(mod.GoMod, PackedModule)
}

// ImportPath builds the import path of the package in packageDir
func (r *ModuleResolver) ImportPath(mod *Module, packageDir string) (string, error) {
	if mod.Root == "" {
		return "", fmt.Errorf("module %s has no root directory", mod.Path)
	}
	abs, err := filepath.Abs(packageDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve package directory: %w", err)
	}
	rel, err := filepath.Rel(mod.Root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to calculate relative path: %w", err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside module %s", packageDir, mod.Path)
	}
	if rel == "." {
		return mod.Path, nil
	}
	return mod.Path + "/" + rel, nil
}

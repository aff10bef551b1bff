// Package generator renders packed_hooks.go files that declare method hook
// annotations to the runtime.
package generator

import (
	"fmt"
	"path/filepath"

	"github.com/toyz/packed/internal/models"
	"github.com/toyz/packed/internal/templates"
	"github.com/toyz/packed/internal/utils"
)

// Generator renders and writes generated hook files
type Generator struct {
	templates *templates.Registry
	names     *utils.ValidatorChain[string]
}

// NewGenerator creates a generator using the builtin templates
func NewGenerator() *Generator {
	return &Generator{
		templates: templates.NewRegistry(),
		names:     utils.NewValidatorChain(utils.NotEmpty("name"), utils.IsValidGoIdentifier("name")),
	}
}

// Generate renders the hooks file for a package. It returns nil when no bean
// in the package declares method hooks, since field tags are read at runtime.
func (g *Generator) Generate(metadata *models.PackageMetadata) (*models.GeneratedFile, error) {
	if metadata == nil {
		return nil, fmt.Errorf("metadata cannot be nil")
	}
	if !metadata.HasMethodHooks() {
		return nil, nil
	}

	data := templates.HooksFileData{
		PackageName: metadata.PackageName,
		Qualifier:   "packed.",
		Import:      templates.PackedImport,
	}
	if metadata.ImportPath == templates.PackedImport {
		data.Qualifier = ""
		data.Import = ""
	}

	path := filepath.Join(metadata.PackagePath, utils.GeneratedFileName)
	hooks := 0
	for _, bean := range metadata.Beans {
		if len(bean.Methods) == 0 {
			continue
		}
		if err := g.checkNames(bean); err != nil {
			return nil, &models.GeneratorError{
				Type:    models.ErrorTypeGeneration,
				File:    bean.File,
				Line:    bean.Line,
				Message: fmt.Sprintf("cannot declare hooks of %s: %v", bean.Name, err),
				Cause:   err,
			}
		}
		byMethod := bean.MethodHooks()
		b := templates.BeanData{Name: bean.Name}
		for _, name := range bean.MethodNames() {
			b.Methods = append(b.Methods, templates.MethodData{Name: name, Annotations: byMethod[name]})
			hooks += len(byMethod[name])
		}
		data.Beans = append(data.Beans, b)
	}

	raw, err := g.templates.Execute(templates.HooksFile, data)
	if err != nil {
		return nil, &models.GeneratorError{
			Type:    models.ErrorTypeGeneration,
			File:    path,
			Message: "failed to render hooks file",
			Cause:   err,
		}
	}
	content, err := utils.FormatGoCode(path, raw)
	if err != nil {
		return nil, &models.GeneratorError{
			Type:    models.ErrorTypeGeneration,
			File:    path,
			Message: fmt.Sprintf("generated code does not format: %v", err),
			Cause:   err,
		}
	}

	return &models.GeneratedFile{
		PackageName: metadata.PackageName,
		FilePath:    path,
		Content:     content,
		Beans:       len(data.Beans),
		Hooks:       hooks,
	}, nil
}

func (g *Generator) checkNames(bean models.BeanMetadata) error {
	if err := g.names.Validate(bean.Name); err != nil {
		return err
	}
	for _, m := range bean.Methods {
		if err := g.names.Validate(m.Member); err != nil {
			return err
		}
	}
	return nil
}

// Write renders the hooks file of a package and writes it next to the
// sources. The returned file is nil when nothing was generated.
func (g *Generator) Write(metadata *models.PackageMetadata) (*models.GeneratedFile, error) {
	file, err := g.Generate(metadata)
	if err != nil || file == nil {
		return nil, err
	}
	if err := utils.FormatAndWriteGoFile(file.FilePath, file.Content); err != nil {
		return nil, &models.GeneratorError{
			Type:    models.ErrorTypeFileSystem,
			File:    file.FilePath,
			Message: "cannot write generated file",
			Cause:   err,
		}
	}
	return file, nil
}

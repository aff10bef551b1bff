// Package templates holds the text/template sources of generated files.
package templates

import (
	"bytes"
	"strconv"
	"text/template"

	perrors "github.com/toyz/packed/internal/errors"
)

// HooksFile renders packed_hooks.go from a HooksFileData
const HooksFile = "hooks-file"

// PackedImport is the import path of the public packed package
const PackedImport = "github.com/toyz/packed/pkg/packed"

// HooksFileData is the input of the HooksFile template
type HooksFileData struct {
	PackageName string
	// Qualifier prefixes packed identifiers; empty inside package packed itself
	Qualifier string
	Import    string
	Beans     []BeanData
}

// BeanData lists the method annotations of one bean type
type BeanData struct {
	Name    string
	Methods []MethodData
}

// MethodData lists the annotations of one method, in source order
type MethodData struct {
	Name        string
	Annotations []string
}

const hooksFileTemplate = `// Code generated by packed generate. DO NOT EDIT.

package {{.PackageName}}
{{if .Import}}
import "{{.Import}}"
{{end}}
func init() {
{{- range .Beans}}
	if err := {{$.Qualifier}}DeclareMethodHooks[{{.Name}}](map[string][]string{
{{- range .Methods}}
		{{quote .Name}}: {
{{- range .Annotations}}
			{{quote .}},
{{- end}}
		},
{{- end}}
	}); err != nil {
		panic(err)
	}
{{- end}}
}
`

// Registry maps template names to their sources
type Registry struct {
	sources map[string]string
	funcs   template.FuncMap
}

// NewRegistry creates a registry holding the builtin templates
func NewRegistry() *Registry {
	return &Registry{
		sources: map[string]string{
			HooksFile: hooksFileTemplate,
		},
		funcs: template.FuncMap{
			"quote": strconv.Quote,
		},
	}
}

// Get returns the source of a template
func (r *Registry) Get(name string) (string, bool) {
	src, ok := r.sources[name]
	return src, ok
}

// Set overrides or adds a template source
func (r *Registry) Set(name, source string) {
	r.sources[name] = source
}

// Execute renders the named template with data
func (r *Registry) Execute(name string, data any) ([]byte, error) {
	src, ok := r.sources[name]
	if !ok {
		return nil, perrors.New(perrors.TemplateErrorCode, "template "+name+" not found")
	}
	tmpl, err := template.New(name).Funcs(r.funcs).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, perrors.WrapTemplateError(name, "parse", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, perrors.WrapTemplateError(name, "execute", err)
	}
	return buf.Bytes(), nil
}

package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/toyz/packed/internal/errors"
)

func TestExecute_HooksFile(t *testing.T) {
	out, err := NewRegistry().Execute(HooksFile, HooksFileData{
		PackageName: "shop",
		Qualifier:   "packed.",
		Import:      PackedImport,
		Beans: []BeanData{{
			Name: "Users",
			Methods: []MethodData{
				{Name: "Get", Annotations: []string{`route GET /users/{id}`, `traced -Name="users get"`}},
			},
		}},
	})
	require.NoError(t, err)

	src := string(out)
	assert.Contains(t, src, "// Code generated by packed generate. DO NOT EDIT.")
	assert.Contains(t, src, "package shop\n")
	assert.Contains(t, src, `import "github.com/toyz/packed/pkg/packed"`)
	assert.Contains(t, src, "packed.DeclareMethodHooks[Users](map[string][]string{")
	assert.Contains(t, src, `"Get": {`)
	assert.Contains(t, src, `"traced -Name=\"users get\"",`)
}

func TestExecute_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Execute("missing", nil)
	assert.EqualError(t, err, "template missing not found")

	r.Set("broken", "{{.Nope")
	_, err = r.Execute("broken", nil)
	assert.ErrorContains(t, err, "parse template broken")
	assert.True(t, perrors.Has(err, perrors.TemplateErrorCode))

	r.Set("field", "{{.Nope}}")
	_, err = r.Execute("field", HooksFileData{})
	assert.ErrorContains(t, err, "execute template field")
	assert.True(t, perrors.Has(err, perrors.TemplateErrorCode))
}

func TestGet(t *testing.T) {
	r := NewRegistry()
	src, ok := r.Get(HooksFile)
	assert.True(t, ok)
	assert.Contains(t, src, "DeclareMethodHooks")

	_, ok = r.Get("other")
	assert.False(t, ok)
}

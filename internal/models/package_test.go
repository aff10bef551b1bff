package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeanMetadata_MethodHooks(t *testing.T) {
	b := BeanMetadata{
		Name: "Users",
		Methods: []HookSite{
			{Member: "Sync", Text: "schedule -Every=1m"},
			{Member: "Get", Text: "route GET /users/{id}"},
			{Member: "Sync", Text: "traced"},
		},
	}
	assert.Equal(t, map[string][]string{
		"Sync": {"schedule -Every=1m", "traced"},
		"Get":  {"route GET /users/{id}"},
	}, b.MethodHooks())
	assert.Equal(t, []string{"Get", "Sync"}, b.MethodNames())
}

func TestPackageMetadata(t *testing.T) {
	p := PackageMetadata{Beans: []BeanMetadata{
		{Name: "Config", Fields: []HookSite{{Member: "Port", Kind: SiteField}}},
	}}
	assert.False(t, p.HasMethodHooks())
	assert.Len(t, p.Sites(), 1)

	p.Beans = append(p.Beans, BeanMetadata{Name: "Jobs", Methods: []HookSite{{Member: "Run", Kind: SiteMethod}}})
	assert.True(t, p.HasMethodHooks())
	assert.Len(t, p.Sites(), 2)
}

func TestGeneratorError(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		err  *GeneratorError
		want string
	}{
		{err: &GeneratorError{File: "a.go", Line: 3, Message: "bad"}, want: "a.go:3: bad"},
		{err: &GeneratorError{File: "a.go", Message: "bad"}, want: "a.go: bad"},
		{err: &GeneratorError{Message: "bad", Cause: cause}, want: "bad"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
	assert.ErrorIs(t, tests[2].err, cause)
	assert.Equal(t, "validation", ErrorTypeValidation.String())
	assert.Equal(t, "ErrorType(9)", ErrorType(9).String())
}

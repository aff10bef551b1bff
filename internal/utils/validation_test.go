package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	assert.Equal(t, "validation error for field 'name': cannot be empty",
		ValidationError{Field: "name", Message: "cannot be empty"}.Error())
	assert.Equal(t, "validation error: bad", ValidationError{Message: "bad"}.Error())
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr string
	}{
		{name: "not empty ok", err: NotEmpty("f")("x")},
		{name: "not empty", err: NotEmpty("f")(""), wantErr: "cannot be empty"},
		{name: "identifier ok", err: IsValidGoIdentifier("f")("Users")},
		{name: "identifier", err: IsValidGoIdentifier("f")("1x"), wantErr: "valid Go identifier"},
		{name: "one of ok", err: IsOneOf("f", "text", "json")("json")},
		{name: "one of", err: IsOneOf("f", "text", "json")("xml"), wantErr: "must be one of: [text json]"},
		{name: "module ok", err: IsModulePath("f")("github.com/toyz/packed")},
		{name: "module", err: IsModulePath("f")("bad path!"), wantErr: "field 'f'"},
		{name: "each", err: ValidateEach("dirs", NotEmpty("dir"))([]string{"a", ""}), wantErr: "dirs[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr == "" {
				assert.NoError(t, tt.err)
				return
			}
			if assert.Error(t, tt.err) {
				assert.Contains(t, tt.err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidatorChain(t *testing.T) {
	chain := NewValidatorChain(NotEmpty("bean")).Add(IsValidGoIdentifier("bean"))
	assert.NoError(t, chain.Validate("Users"))
	assert.ErrorContains(t, chain.Validate(""), "cannot be empty")
	assert.ErrorContains(t, chain.Validate("Not Valid"), "must be a valid Go identifier")
}

package utils

import (
	"fmt"
	"go/token"

	"golang.org/x/mod/module"
)

// ValidationError reports an invalid field value
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Validator checks a single value
type Validator[T any] func(T) error

// ValidatorChain runs validators in order, stopping at the first error
type ValidatorChain[T any] struct {
	validators []Validator[T]
}

// NewValidatorChain creates a chain of validators
func NewValidatorChain[T any](validators ...Validator[T]) *ValidatorChain[T] {
	return &ValidatorChain[T]{validators: validators}
}

// Add appends a validator
func (vc *ValidatorChain[T]) Add(validator Validator[T]) *ValidatorChain[T] {
	vc.validators = append(vc.validators, validator)
	return vc
}

// Validate runs the chain
func (vc *ValidatorChain[T]) Validate(value T) error {
	for _, v := range vc.validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// NotEmpty rejects empty strings
func NotEmpty(field string) Validator[string] {
	return func(value string) error {
		if value == "" {
			return ValidationError{Field: field, Value: value, Message: "cannot be empty"}
		}
		return nil
	}
}

// IsValidGoIdentifier rejects strings that are not Go identifiers
func IsValidGoIdentifier(field string) Validator[string] {
	return func(value string) error {
		if !token.IsIdentifier(value) {
			return ValidationError{Field: field, Value: value, Message: "must be a valid Go identifier"}
		}
		return nil
	}
}

// IsOneOf rejects values outside allowed
func IsOneOf[T comparable](field string, allowed ...T) Validator[T] {
	return func(value T) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be one of: %v", allowed)}
	}
}

// IsModulePath rejects strings that are not valid module paths
func IsModulePath(field string) Validator[string] {
	return func(value string) error {
		if err := module.CheckImportPath(value); err != nil {
			return ValidationError{Field: field, Value: value, Message: err.Error()}
		}
		return nil
	}
}

// ValidateEach applies item to every element of a slice
func ValidateEach[T any](field string, item Validator[T]) Validator[[]T] {
	return func(values []T) error {
		for i, v := range values {
			if err := item(v); err != nil {
				return ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Value: v, Message: err.Error()}
			}
		}
		return nil
	}
}

package annotations

import (
	"fmt"
	"strings"

	perrors "github.com/toyz/packed/internal/errors"
)

func syntaxError(loc SourceLocation, msg string) *perrors.Error {
	return perrors.New(perrors.SyntaxErrorCode, msg).At(loc)
}

func schemaError(loc SourceLocation, msg string) *perrors.Error {
	return perrors.New(perrors.SchemaErrorCode, msg).At(loc)
}

func parameterError(loc SourceLocation, name, msg string) *perrors.Error {
	return perrors.New(perrors.ValidationErrorCode, fmt.Sprintf("parameter %s %s", name, msg)).
		At(loc).
		WithContext("parameter", name)
}

// unknownAnnotation reports a name no schema is registered for, suggesting
// the registered name sharing the longest prefix of at least two letters
func unknownAnnotation(r *Registry, loc SourceLocation, name string) *perrors.Error {
	err := schemaError(loc, fmt.Sprintf("unknown annotation '%s'", name))
	names := r.Names()
	best, bestLen := AnnotationType(""), 1
	for _, candidate := range names {
		if n := commonPrefix(name, string(candidate)); n > bestLen {
			best, bestLen = candidate, n
		}
	}
	if best != "" {
		return err.WithSuggestion(fmt.Sprintf("Did you mean '%s'?", best))
	}
	known := make([]string, len(names))
	for i, n := range names {
		known[i] = string(n)
	}
	return err.WithSuggestion("Known annotations: " + strings.Join(known, ", "))
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

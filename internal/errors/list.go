package errors

import (
	"fmt"
	"strings"
)

// List collects the errors of a step that reports every problem it finds
// instead of stopping at the first. The zero value is ready to use.
type List struct {
	errs []error
}

// Add appends err. Nil errors are ignored and nested lists are flattened.
func (l *List) Add(err error) {
	switch e := err.(type) {
	case nil:
	case *List:
		l.errs = append(l.errs, e.errs...)
	default:
		l.errs = append(l.errs, err)
	}
}

// Len returns the number of collected errors
func (l *List) Len() int {
	return len(l.errs)
}

// Errors returns the collected errors. zap logs them as errorCauses.
func (l *List) Errors() []error {
	return l.errs
}

// Unwrap lets errors.Is and errors.As inspect every collected error
func (l *List) Unwrap() []error {
	return l.errs
}

func (l *List) Error() string {
	switch len(l.errs) {
	case 0:
		return "no errors"
	case 1:
		return l.errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(l.errs))
	for i, err := range l.errs {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, err)
	}
	return b.String()
}

// Err returns nil for an empty list, the error itself when the list holds
// one, and the list otherwise
func (l *List) Err() error {
	switch len(l.errs) {
	case 0:
		return nil
	case 1:
		return l.errs[0]
	}
	return l
}

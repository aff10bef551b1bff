package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/toyz/packed/internal/models"
	"github.com/toyz/packed/internal/parser"
)

// DiagnosticReporter prints generator errors and scan warnings
type DiagnosticReporter struct {
	verbose bool
	out     io.Writer

	title, kind, hint, warn *color.Color
}

// NewDiagnosticReporter creates a reporter writing to stderr
func NewDiagnosticReporter(verbose bool) *DiagnosticReporter {
	return &DiagnosticReporter{
		verbose: verbose,
		out:     os.Stderr,
		title:   color.New(color.FgRed, color.Bold),
		kind:    color.New(color.FgRed),
		hint:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow, color.Bold),
	}
}

// SetOutput redirects the reporter
func (r *DiagnosticReporter) SetOutput(out io.Writer) {
	r.out = out
}

// SetColors turns colored output on or off
func (r *DiagnosticReporter) SetColors(enabled bool) {
	for _, c := range []*color.Color{r.title, r.kind, r.hint, r.warn} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// ReportWarning prints a one-line warning
func (r *DiagnosticReporter) ReportWarning(format string, args ...any) {
	r.warn.Fprint(r.out, "! ")
	fmt.Fprintf(r.out, format+"\n", args...)
}

// ReportUnknownSites warns about annotations no schema is registered for.
// They are accepted and checked at build time by the extension that owns them.
func (r *DiagnosticReporter) ReportUnknownSites(meta *models.PackageMetadata) int {
	n := 0
	for _, site := range meta.Sites() {
		if !site.Unknown {
			continue
		}
		n++
		r.ReportWarning("%s:%d: %s %s.%s uses unknown annotation %q", site.File, site.Line, site.Kind, site.Bean, site.Member, site.Annotation)
	}
	return n
}

// ReportError prints err with every problem it carries
func (r *DiagnosticReporter) ReportError(err error) {
	var scanErrs parser.ScanErrors
	var genErr *models.GeneratorError
	switch {
	case errors.As(err, &scanErrs):
		r.title.Fprintf(r.out, "%d problem(s) found\n\n", len(scanErrs))
		for _, e := range scanErrs {
			r.reportGeneratorError(e)
		}
	case errors.As(err, &genErr):
		r.reportGeneratorError(genErr)
	default:
		r.title.Fprint(r.out, "error: ")
		fmt.Fprintln(r.out, err.Error())
	}
}

func (r *DiagnosticReporter) reportGeneratorError(e *models.GeneratorError) {
	r.kind.Fprintf(r.out, "%s error", e.Type)
	fmt.Fprintf(r.out, ": %s\n", e.Error())
	if e.Suggestion != "" {
		r.hint.Fprint(r.out, "  hint: ")
		fmt.Fprintln(r.out, e.Suggestion)
	}
	if r.verbose && e.Cause != nil && !strings.Contains(e.Message, e.Cause.Error()) {
		fmt.Fprintf(r.out, "  cause: %v\n", e.Cause)
	}
	fmt.Fprintln(r.out)
}

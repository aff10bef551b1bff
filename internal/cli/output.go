package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/toyz/packed/internal/annotations"
	"github.com/toyz/packed/internal/models"
	"gopkg.in/yaml.v3"
)

// WriteScan writes the hook sites of the scanned packages in format
func WriteScan(w io.Writer, format string, metas []*models.PackageMetadata) error {
	if metas == nil {
		metas = []*models.PackageMetadata{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(metas)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(metas); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return writeScanText(w, metas)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func writeScanText(w io.Writer, metas []*models.PackageMetadata) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, meta := range metas {
		name := meta.ImportPath
		if name == "" {
			name = meta.PackagePath
		}
		fmt.Fprintf(tw, "package %s (%s)\n", meta.PackageName, name)
		for _, b := range meta.Beans {
			fmt.Fprintf(tw, "  %s\n", b.Name)
			for _, site := range append(append([]models.HookSite{}, b.Fields...), b.Methods...) {
				flag := ""
				if site.Unknown {
					flag = "\t(unknown)"
				}
				fmt.Fprintf(tw, "    %s\t%s\t%s\t%s:%d%s\n", site.Kind, site.Member, site.Text, site.File, site.Line, flag)
			}
		}
	}
	return tw.Flush()
}

// WriteSchemas lists the annotation schemas of registry
func WriteSchemas(w io.Writer, registry *annotations.Registry) error {
	for i, schema := range registry.Schemas() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  [%s]\n", schema.Type, schema.Targets)
		if schema.Description != "" {
			fmt.Fprintf(w, "  %s\n", schema.Description)
		}
		if schema.Extension != "" {
			fmt.Fprintf(w, "  extension: %s\n", schema.Extension)
		}
		if len(schema.Positional) > 0 {
			fmt.Fprintf(w, "  positional: %s\n", strings.Join(schema.Positional, ", "))
		}

		names := make([]string, 0, len(schema.Parameters))
		for name := range schema.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			spec := schema.Parameters[name]
			line := fmt.Sprintf("  -%s %s", name, spec.Type)
			if spec.Required {
				line += " (required)"
			} else if spec.Default != nil {
				line += fmt.Sprintf(" (default %v)", spec.Default)
			}
			if spec.Description != "" {
				line += ": " + spec.Description
			}
			fmt.Fprintln(w, line)
		}
		for _, ex := range schema.Examples {
			fmt.Fprintf(w, "  e.g. %s\n", ex)
		}
	}
	return nil
}

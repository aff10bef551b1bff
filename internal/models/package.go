package models

import "sort"

// SiteKind tells where a statically found hook annotation sits
type SiteKind string

const (
	// SiteMethod is a //packed:: comment on a method
	SiteMethod SiteKind = "method"
	// SiteField is a `packed:"..."` struct tag
	SiteField SiteKind = "field"
)

// HookSite is one annotation found in source
type HookSite struct {
	Bean       string   `json:"bean" yaml:"bean"`
	Member     string   `json:"member" yaml:"member"`
	Kind       SiteKind `json:"kind" yaml:"kind"`
	Annotation string   `json:"annotation" yaml:"annotation"`
	Text       string   `json:"text" yaml:"text"`
	File       string   `json:"file" yaml:"file"`
	Line       int      `json:"line" yaml:"line"`
	// Unknown is set when no schema is registered for the annotation; the
	// runtime validates it once the owning extension is imported
	Unknown bool `json:"unknown,omitempty" yaml:"unknown,omitempty"`
}

// BeanMetadata collects the hook sites of one struct type
type BeanMetadata struct {
	Name    string     `json:"name" yaml:"name"`
	File    string     `json:"file" yaml:"file"`
	Line    int        `json:"line" yaml:"line"`
	Methods []HookSite `json:"methods,omitempty" yaml:"methods,omitempty"`
	Fields  []HookSite `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// MethodHooks returns the method annotations keyed by method name, in
// source order per method
func (b *BeanMetadata) MethodHooks() map[string][]string {
	hooks := make(map[string][]string)
	for _, s := range b.Methods {
		hooks[s.Member] = append(hooks[s.Member], s.Text)
	}
	return hooks
}

// MethodNames returns the annotated method names, sorted
func (b *BeanMetadata) MethodNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range b.Methods {
		if !seen[s.Member] {
			seen[s.Member] = true
			names = append(names, s.Member)
		}
	}
	sort.Strings(names)
	return names
}

// PackageMetadata is the scan result of one package directory
type PackageMetadata struct {
	PackageName string         `json:"package" yaml:"package"`
	PackagePath string         `json:"dir" yaml:"dir"`
	ImportPath  string         `json:"import_path,omitempty" yaml:"import_path,omitempty"`
	Beans       []BeanMetadata `json:"beans" yaml:"beans"`
}

// HasMethodHooks reports whether any bean declares method annotations,
// which is when a generated file is needed
func (p *PackageMetadata) HasMethodHooks() bool {
	for _, b := range p.Beans {
		if len(b.Methods) > 0 {
			return true
		}
	}
	return false
}

// Sites returns every hook site of the package
func (p *PackageMetadata) Sites() []HookSite {
	var sites []HookSite
	for _, b := range p.Beans {
		sites = append(sites, b.Fields...)
		sites = append(sites, b.Methods...)
	}
	return sites
}

// GeneratedFile is the output of generation for one package
type GeneratedFile struct {
	PackageName string
	FilePath    string
	Content     []byte
	Beans       int
	Hooks       int
}

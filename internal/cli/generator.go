package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	perrors "github.com/toyz/packed/internal/errors"
	"github.com/toyz/packed/internal/generator"
	"github.com/toyz/packed/internal/models"
	"github.com/toyz/packed/internal/parser"
	"github.com/toyz/packed/internal/utils"
)

// GenerationSummary describes the outcome of a run
type GenerationSummary struct {
	PackagesProcessed int
	BeansFound        int
	MethodHooks       int
	FieldHooks        int
	UnknownHooks      int
	GeneratedFiles    []string
	RemovedFiles      []string
	Duration          time.Duration
}

// Generator coordinates scanning, generation and reporting
type Generator struct {
	config         *Config
	scanner        *DirectoryScanner
	moduleResolver *ModuleResolver
	parser         *parser.Parser
	codeGenerator  *generator.Generator
	reporter       *DiagnosticReporter
	diagnostics    *utils.DiagnosticSystem
	summary        GenerationSummary
}

// NewGenerator creates a CLI generator for cfg
func NewGenerator(cfg *Config, diagnostics *utils.DiagnosticSystem) *Generator {
	p := parser.NewParser()
	p.SetStrict(cfg.Strict)
	return &Generator{
		config:         cfg,
		scanner:        NewDirectoryScanner(),
		moduleResolver: NewModuleResolver(),
		parser:         p,
		codeGenerator:  generator.NewGenerator(),
		reporter:       NewDiagnosticReporter(cfg.Verbose),
		diagnostics:    diagnostics,
	}
}

// Reporter returns the error reporter
func (g *Generator) Reporter() *DiagnosticReporter {
	return g.reporter
}

// Summary returns the summary of the last run
func (g *Generator) Summary() GenerationSummary {
	return g.summary
}

// Scan parses every package under the configured directories. Scan problems
// of all packages are collected into a single ScanErrors.
func (g *Generator) Scan() ([]*models.PackageMetadata, error) {
	dirs, err := g.scanner.ScanDirectories(g.config.Directories)
	if err != nil {
		return nil, err
	}
	g.diagnostics.Debug("Package directories: %v", dirs)

	var mod *Module
	if m, err := g.moduleResolver.Resolve(g.config.ModuleName, "."); err != nil {
		g.diagnostics.Verbose("Import paths unavailable: %v", err)
	} else {
		mod = m
		g.diagnostics.Verbose("Module: %s", mod.Path)
		if ok, err := g.moduleResolver.RequiresPacked(mod); err == nil && !ok {
			g.reporter.ReportWarning("%s does not require %s; generated files will not compile", mod.GoMod, PackedModule)
		}
	}

	var (
		metas    []*models.PackageMetadata
		problems parser.ScanErrors
	)
	for _, dir := range dirs {
		meta, err := g.parser.ParseDirectory(dir)
		if err != nil {
			var scanErrs parser.ScanErrors
			var genErr *models.GeneratorError
			switch {
			case errors.As(err, &scanErrs):
				problems = append(problems, scanErrs...)
			case errors.As(err, &genErr):
				problems = append(problems, genErr)
			default:
				return nil, err
			}
			continue
		}
		if mod != nil && mod.Root != "" {
			if path, err := g.moduleResolver.ImportPath(mod, dir); err == nil {
				meta.ImportPath = path
			}
		}
		metas = append(metas, meta)
	}
	if len(problems) > 0 {
		return metas, problems
	}
	return metas, nil
}

// Run scans the configured directories and writes a hooks file into every
// package declaring method hooks. A stale hooks file in a package that no
// longer declares any is removed. Nothing is written when any package has
// problems.
func (g *Generator) Run() error {
	start := time.Now()
	g.summary = GenerationSummary{}

	metas, err := g.Scan()
	if err != nil {
		g.reporter.ReportError(err)
		return fmt.Errorf("generation failed: %w", err)
	}

	for _, meta := range metas {
		g.summary.PackagesProcessed++
		g.summary.UnknownHooks += g.reporter.ReportUnknownSites(meta)
		for _, b := range meta.Beans {
			g.summary.BeansFound++
			g.summary.MethodHooks += len(b.Methods)
			g.summary.FieldHooks += len(b.Fields)
		}

		file, err := g.codeGenerator.Write(meta)
		if err != nil {
			g.reporter.ReportError(err)
			return fmt.Errorf("generation failed: %w", err)
		}
		if file != nil {
			g.diagnostics.Item("%s (%d beans, %d hooks)", file.FilePath, file.Beans, file.Hooks)
			g.summary.GeneratedFiles = append(g.summary.GeneratedFiles, file.FilePath)
			continue
		}

		stale := filepath.Join(meta.PackagePath, utils.GeneratedFileName)
		if err := os.Remove(stale); err == nil {
			g.diagnostics.Verbose("Removed stale %s", stale)
			g.summary.RemovedFiles = append(g.summary.RemovedFiles, stale)
		} else if !os.IsNotExist(err) {
			return perrors.WrapFileSystemError("remove", stale, err)
		}
	}

	stats := g.parser.Processor().Reader().CacheStats()
	g.diagnostics.Debug("AST cache: %d files, %d hits, %d misses", stats.Size, stats.Hits, stats.Misses)
	g.summary.Duration = time.Since(start)
	return nil
}

// Stats returns the summary as diagnostic statistics
func (s GenerationSummary) Stats() map[string]any {
	return map[string]any{
		"Packages processed": s.PackagesProcessed,
		"Beans found":        s.BeansFound,
		"Method hooks":       s.MethodHooks,
		"Field hooks":        s.FieldHooks,
		"Unknown hooks":      s.UnknownHooks,
		"Files generated":    len(s.GeneratedFiles),
	}
}

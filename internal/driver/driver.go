// Package driver runs the compiler pipeline: keyword loading, parsing, type
// checking, code generation and emission.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/llir/llvm/ir"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/codegen"
	"github.com/odb-lang/odb-compiler/internal/config"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/emit"
	"github.com/odb-lang/odb-compiler/internal/engine"
	"github.com/odb-lang/odb-compiler/internal/fsutil"
	"github.com/odb-lang/odb-compiler/internal/keywords"
	"github.com/odb-lang/odb-compiler/internal/parser"
	"github.com/odb-lang/odb-compiler/internal/types"
)

// Driver holds the state shared by the stages of one invocation.
type Driver struct {
	Config   *config.Config
	Logger   *slog.Logger
	Keywords *keywords.Index

	// Sources maps each parsed file to its text, for rendering diagnostics.
	Sources map[string][]byte
}

// New returns a driver with an empty keyword index.
func New(cfg *config.Config, logger *slog.Logger) *Driver {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		Config:   cfg,
		Logger:   logger,
		Keywords: keywords.NewIndex(),
		Sources:  map[string][]byte{},
	}
}

// LoadKeywords adds the configured keyword paths and extra to the index,
// going through the bbolt cache when one is configured.
func (d *Driver) LoadKeywords(extra []string, recursive bool) error {
	l := keywords.NewLoader(d.Keywords, d.Logger)
	if path := d.Config.Keywords.Cache; path != "" {
		c, err := keywords.OpenCache(path)
		if err != nil {
			d.Logger.Warn("keyword cache unavailable", slog.String("path", path), slog.Any("error", err))
		} else {
			defer c.Close()
			l.Cache = c
		}
	}

	paths := append(append([]string(nil), d.Config.Keywords.Paths...), d.Config.Plugins.Paths...)
	paths = append(paths, extra...)
	if err := l.LoadPaths(paths, recursive || d.Config.Keywords.Recursive); err != nil {
		return err
	}
	d.Logger.Info("keywords loaded", slog.Int("keywords", d.Keywords.Len()),
		slog.Int("plugins", len(d.Keywords.Plugins())))
	return nil
}

// Parse parses files in order into one program. Declarations in earlier
// files are visible to later ones. Every file is parsed even after a
// failure so that all diagnostics are reported together.
func (d *Driver) Parse(files []string) (*ast.Program, error) {
	if len(files) == 0 {
		return nil, errors.New("no source files given")
	}
	prog := ast.NewProgram()
	syms := parser.NewSymbols()
	var list diag.List
	for _, file := range files {
		src, err := fsutil.ReadFile(file)
		if err != nil {
			return nil, err
		}
		d.Sources[file] = src

		frag, err := parser.Parse(src,
			parser.WithFilename(file),
			parser.WithKeywords(d.Keywords),
			parser.WithSymbols(syms),
			parser.WithLogger(d.Logger))
		if err != nil {
			var dl diag.List
			if !errors.As(err, &dl) {
				return nil, err
			}
			list = append(list, dl...)
			continue
		}
		if err := prog.AddFragment(frag); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		d.Logger.Debug("parsed", slog.String("file", file))
	}
	if len(list) > 0 {
		return nil, list
	}
	return prog, nil
}

// Check type checks prog against the loaded keywords.
func (d *Driver) Check(prog *ast.Program) (*types.Info, error) {
	return types.Check(prog, d.Keywords, d.Logger)
}

// Plugins returns the configured plugins followed by extra.
func (d *Driver) Plugins(extra []string) []engine.Plugin {
	var out []engine.Plugin
	for _, p := range append(append([]string(nil), d.Config.Plugins.Paths...), extra...) {
		if !strings.EqualFold(filepath.Ext(p), ".dll") {
			continue
		}
		out = append(out, engine.PluginFromPath(p))
	}
	return out
}

// NewEngine returns the engine back end named by the build config.
func (d *Driver) NewEngine(m *ir.Module) (engine.Interface, error) {
	opts := engine.Options{
		Display: d.Config.EngineDisplay(),
		Core:    d.Config.Plugins.Core,
		Logger:  d.Logger,
	}
	switch d.Config.Build.Engine {
	case "tgc", "":
		return engine.NewTGC(m, opts), nil
	case "runtime":
		return engine.NewRuntime(m, opts), nil
	}
	return nil, fmt.Errorf("unknown engine %q", d.Config.Build.Engine)
}

// Compile runs parsing, checking and code generation.
func (d *Driver) Compile(files, plugins []string) (*ir.Module, error) {
	prog, err := d.Parse(files)
	if err != nil {
		return nil, err
	}
	info, err := d.Check(prog)
	if err != nil {
		return nil, err
	}
	eng, err := d.NewEngine(ir.NewModule())
	if err != nil {
		return nil, err
	}
	return codegen.Generate(prog, info, eng, codegen.Options{
		Keywords:       d.Keywords,
		Plugins:        d.Plugins(plugins),
		SourceFilename: files[0],
		TargetTriple:   d.Config.Build.TargetTriple,
		Logger:         d.Logger,
	})
}

// Build compiles files and emits the result.
func (d *Driver) Build(ctx context.Context, files, plugins []string, opts emit.Options) error {
	m, err := d.Compile(files, plugins)
	if err != nil {
		return err
	}
	b := d.Config.Build
	if opts.TargetTriple == "" {
		opts.TargetTriple = b.TargetTriple
	}
	if opts.LLVMAs == "" {
		opts.LLVMAs = b.LLVMAs
	}
	if opts.LLC == "" {
		opts.LLC = b.LLC
	}
	if opts.Linker == "" {
		opts.Linker = b.Linker
	}
	if opts.SDKLibs == nil {
		opts.SDKLibs = b.SDKLibs
	}
	if opts.Logger == nil {
		opts.Logger = d.Logger
	}
	d.Logger.Info("emitting", slog.String("kind", string(opts.Kind)), slog.String("output", opts.Output))
	return emit.Emit(ctx, m, opts)
}

// Report renders err through f when it carries diagnostics and reports
// whether it did.
func (d *Driver) Report(f *diag.Formatter, err error) bool {
	var list diag.List
	if errors.As(err, &list) {
		for name, src := range d.Sources {
			f.AddSource(name, src)
		}
		f.FormatAll(list)
		return true
	}
	var one diag.Diagnostic
	if errors.As(err, &one) {
		for name, src := range d.Sources {
			f.AddSource(name, src)
		}
		f.Format(one)
		return true
	}
	return false
}

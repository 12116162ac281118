// Package codegen lowers a checked program to LLVM IR. Commands become calls
// through engine thunks; the engine also supplies the process entry point.
package codegen

import (
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/engine"
	"github.com/odb-lang/odb-compiler/internal/keywords"
	"github.com/odb-lang/odb-compiler/internal/types"
)

// DefaultTriple is the target every engine plugin is built for.
const (
	DefaultTriple     = "i386-pc-windows-msvc"
	defaultDataLayout = "e-m:x-p:32:32-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:32-n8:16:32-a:0:32-S32"
)

// GameEntryName is the function holding the main program.
const GameEntryName = "__DBmain"

// Options configure a Generator.
type Options struct {
	// Keywords resolves command invocations.
	Keywords *keywords.Index
	// Plugins are loaded by the entry point in addition to those referenced
	// by commands the program uses. The core plugin must be among them.
	Plugins []engine.Plugin

	SourceFilename string
	TargetTriple   string
	Logger         *slog.Logger
}

// Generator translates one program into the engine's module.
type Generator struct {
	// Errors holds user-facing problems found during generation.
	Errors []diag.Diagnostic

	m      *ir.Module
	engine engine.Interface
	info   *types.Info
	opts   Options
	logger *slog.Logger
	tree   *ast.Tree

	// User functions by key.
	funcs map[string]*ir.Func

	// Global variables and arrays by key.
	globals      map[string]*variable
	globalArrays map[string]*variable

	// UDT struct types by key.
	structs map[string]*lltypes.StructType

	// Plugins referenced by the thunks that were created, by file stem.
	plugins map[string]engine.Plugin

	// Module-level helpers created on first use.
	emptyString constant.Constant
	intrinsics  map[string]*ir.Func
	gosubPush   *ir.Func
	gosubPop    *ir.Func

	// Function currently being generated.
	fn *functionContext
}

// New returns a generator that adds to eng's module.
func New(eng engine.Interface, info *types.Info, opts Options) *Generator {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.TargetTriple == "" {
		opts.TargetTriple = DefaultTriple
	}
	return &Generator{
		m:            eng.Module(),
		engine:       eng,
		info:         info,
		opts:         opts,
		logger:       opts.Logger,
		funcs:        map[string]*ir.Func{},
		globals:      map[string]*variable{},
		globalArrays: map[string]*variable{},
		structs:      map[string]*lltypes.StructType{},
		plugins:      map[string]engine.Plugin{},
		intrinsics:   map[string]*ir.Func{},
	}
}

// Generate lowers prog into the module and verifies the result. The error
// is a diag.List for problems in the program and an *InternalError for
// broken invariants.
func Generate(prog *ast.Program, info *types.Info, eng engine.Interface, opts Options) (*ir.Module, error) {
	return New(eng, info, opts).Generate(prog)
}

func (g *Generator) Generate(prog *ast.Program) (*ir.Module, error) {
	g.tree = prog.Tree
	g.m.SourceFilename = g.opts.SourceFilename
	g.m.TargetTriple = g.opts.TargetTriple
	if g.opts.TargetTriple == DefaultTriple {
		g.m.DataLayout = defaultDataLayout
	}

	// Types and globals are visible from every body.
	for _, name := range sortedKeys(g.info.UDTs) {
		g.structType(name)
	}
	if err := g.collectGlobals(prog); err != nil {
		return nil, err
	}

	// 1. game entry, 2. prototypes, 3. bodies
	game := g.m.NewFunc(GameEntryName, lltypes.Void)
	game.Linkage = enum.LinkageInternal
	for _, id := range prog.Functions() {
		g.declareFunction(g.tree.Node(id).(*ast.FuncDecl))
	}
	if err := g.genBody(game, nil, prog.MainStmts()); err != nil {
		return nil, err
	}
	for _, id := range prog.Functions() {
		fd := g.tree.Node(id).(*ast.FuncDecl)
		body := g.tree.Node(fd.Body).(*ast.Block).Stmts
		if err := g.genBody(g.funcs[key(fd.Name)], fd, body); err != nil {
			return nil, err
		}
	}
	if len(g.Errors) > 0 {
		return nil, diag.List(g.Errors)
	}

	// 4. entry point
	if _, err := g.engine.EntryPoint(game, g.pluginList()); err != nil {
		switch {
		case errors.Is(err, engine.ErrNoPlugins):
			g.reportError(diag.StageEngine, diag.CodeEngineNoPlugins, ast.NoNode,
				"pass the core plugin with --plugin or list it under [plugins]", "%v", err)
		case errors.Is(err, engine.ErrCorePluginMissing):
			g.reportError(diag.StageEngine, diag.CodeEngineCorePluginMissing, ast.NoNode,
				"pass the core plugin with --plugin or list it under [plugins]", "%v", err)
		default:
			return nil, err
		}
		return nil, diag.List(g.Errors)
	}

	// 5. verification
	if err := Verify(g.m); err != nil {
		return nil, err
	}
	g.logger.Debug("generated module",
		slog.Int("functions", len(g.m.Funcs)), slog.Int("globals", len(g.m.Globals)),
		slog.Int("plugins", len(g.plugins)))
	return g.m, nil
}

// pluginList is the configured plugins followed by the referenced ones in
// name order.
func (g *Generator) pluginList() []engine.Plugin {
	out := append([]engine.Plugin(nil), g.opts.Plugins...)
	for _, name := range sortedKeys(g.plugins) {
		out = append(out, g.plugins[name])
	}
	return out
}

// declareFunction adds the prototype of a user function.
func (g *Generator) declareFunction(fd *ast.FuncDecl) {
	f, _ := g.info.Function(fd.Name)
	params := make([]*ir.Param, len(fd.Params))
	for i, p := range fd.Params {
		sym := g.tree.SymOf(p)
		params[i] = ir.NewParam(sanitize(sym.Name), g.irType(sym.Type, sym.TypeName))
	}
	ret := lltypes.Type(lltypes.Void)
	if f != nil && f.Return != ast.TypeNone {
		ret = g.irType(f.Return, "")
	}
	fn := g.m.NewFunc("__DB"+sanitize(fd.Name), ret, params...)
	fn.Linkage = enum.LinkageInternal
	g.funcs[key(fd.Name)] = fn
}

// collectGlobals creates a module global for every global declaration in
// the program, wherever it appears.
func (g *Generator) collectGlobals(prog *ast.Program) error {
	var err error
	g.tree.Walk(prog.Main(), func(id ast.NodeID) bool {
		if err != nil {
			return false
		}
		switch n := g.tree.Node(id).(type) {
		case *ast.VarDecl:
			if n.Scope == ast.ScopeGlobal {
				g.global(n.Name, n.Type, n.TypeName)
			}
		case *ast.ArrayDecl:
			if n.Scope == ast.ScopeGlobal {
				_, err = g.globalArray(id, n)
			}
		case *ast.UDTDecl:
			return false
		}
		return true
	})
	return err
}

// global returns the module global for a variable, creating it zeroed.
func (g *Generator) global(name string, t ast.DataType, udt string) *variable {
	if v, ok := g.globals[key(name)]; ok {
		return v
	}
	elem := g.irType(t, udt)
	gv := g.m.NewGlobalDef("g."+sanitize(name), g.zero(elem))
	gv.Linkage = enum.LinkageInternal
	v := &variable{ptr: gv, elem: elem, typ: t, udt: udt}
	g.globals[key(name)] = v
	return v
}

func (g *Generator) globalArray(id ast.NodeID, n *ast.ArrayDecl) (*variable, error) {
	if v, ok := g.globalArrays[key(n.Name)]; ok {
		return v, nil
	}
	v, err := g.arrayVariable(id, n)
	if err != nil {
		return nil, err
	}
	gv := g.m.NewGlobalDef("ga."+sanitize(n.Name), constant.NewZeroInitializer(v.array))
	gv.Linkage = enum.LinkageInternal
	v.ptr = gv
	g.globalArrays[key(n.Name)] = v
	return v, nil
}

func key(name string) string {
	return strings.ToLower(name)
}

// sanitize turns a source name into an IR-friendly one, spelling out the
// type suffix.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "$", "_str")
	name = strings.ReplaceAll(name, "#", "_flt")
	return strings.ReplaceAll(name, " ", "_")
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package engine synthesizes the glue between generated code and a game
// engine: one thunk per plugin command, the process entry point that loads
// plugins and starts the engine, and the string helpers both need.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/odb-lang/odb-compiler/internal/keywords"
)

var (
	// ErrCorePluginMissing is returned by EntryPoint when the plugin list
	// lacks the core runtime library.
	ErrCorePluginMissing = errors.New("core plugin missing")
	// ErrNoPlugins is returned by EntryPoint for an empty plugin list.
	ErrNoPlugins = errors.New("no plugins specified")
	// ErrUnboundCommand means a command has no plugin export to call.
	ErrUnboundCommand = errors.New("command has no plugin export")
)

// DefaultCore is the file stem of the core runtime plugin.
const DefaultCore = "DBProCore"

// Interface is implemented by every engine back end.
type Interface interface {
	// Module is the module every declaration is added to.
	Module() *ir.Module

	// CommandThunk returns the internal function that forwards to the plugin
	// export behind o. Thunks are created once per export.
	CommandThunk(kw *keywords.Keyword, o *keywords.Overload) (*ir.Func, error)

	// EntryPoint defines `main`, which loads plugins, initialises the engine
	// and calls game.
	EntryPoint(game *ir.Func, plugins []Plugin) (*ir.Func, error)

	// StringAdd appends code to b that concatenates x and y into a fresh
	// heap string.
	StringAdd(b *ir.Block, x, y value.Value) value.Value

	// StringCompare appends code to b that compares x and y with strcmp and
	// tests the result against zero with pred.
	StringCompare(b *ir.Block, pred enum.IPred, x, y value.Value) value.Value

	// Exit appends a call to the C runtime's exit.
	Exit(b *ir.Block, code int64)
}

// Plugin is a library the generated program loads at startup.
type Plugin struct {
	Name string // file stem, e.g. DBProBasic3DDebug
	File string // file name passed to the loader, e.g. DBProBasic3DDebug.dll
}

// PluginFromPath builds a Plugin from a path or bare file name.
func PluginFromPath(path string) Plugin {
	file := filepath.Base(path)
	return Plugin{
		Name: strings.TrimSuffix(file, filepath.Ext(file)),
		File: file,
	}
}

// Display configures the initial display mode handed to the engine.
type Display struct {
	Mode   int
	Width  int
	Height int
	Depth  int
}

// Options configure an engine.
type Options struct {
	Display Display
	// Core overrides the core plugin's file stem.
	Core   string
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Display == (Display{}) {
		o.Display = Display{Mode: 1, Width: 640, Height: 480, Depth: 32}
	}
	if o.Core == "" {
		o.Core = DefaultCore
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// orderPlugins deduplicates plugins and moves the core plugin to the front.
func orderPlugins(plugins []Plugin, core string) ([]Plugin, error) {
	if len(plugins) == 0 {
		return nil, ErrNoPlugins
	}
	var (
		out  []Plugin
		seen = map[string]bool{}
	)
	for _, p := range plugins {
		k := strings.ToLower(p.Name)
		if seen[k] {
			continue
		}
		seen[k] = true
		if strings.EqualFold(p.Name, core) {
			out = append([]Plugin{p}, out...)
			continue
		}
		out = append(out, p)
	}
	if !strings.EqualFold(out[0].Name, core) {
		return nil, fmt.Errorf("%w: %s.dll is not in the plugin list", ErrCorePluginMissing, core)
	}
	return out, nil
}

// ThunkName is the IR name of the thunk for o: DBCommand followed by the
// command name in upper camel case. Commands with several overloads get the
// arity appended.
func ThunkName(kw *keywords.Keyword, o *keywords.Overload) string {
	var b strings.Builder
	b.WriteString("DBCommand")
	for _, word := range strings.Fields(kw.Name) {
		for i, r := range word {
			switch {
			case r == '$':
				b.WriteByte('S')
			case r == '#':
				b.WriteByte('F')
			case r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_'):
				if i == 0 {
					b.WriteString(strings.ToUpper(string(r)))
				} else {
					b.WriteRune(r)
				}
			}
		}
	}
	if len(kw.Overloads) > 1 {
		fmt.Fprintf(&b, "%d", len(o.Args))
	}
	return b.String()
}

var i8ptr = types.NewPointer(types.I8)

// PluginType maps a plugin type character onto its IR type.
func PluginType(t keywords.Type) (types.Type, error) {
	switch t {
	case keywords.TypeInteger, keywords.TypeDword:
		return types.I32, nil
	case keywords.TypeFloat:
		return types.Float, nil
	case keywords.TypeString:
		return i8ptr, nil
	case keywords.TypeDouble:
		return types.Double, nil
	case keywords.TypeLong:
		return types.I64, nil
	case keywords.TypeVoid:
		return types.Void, nil
	}
	return nil, fmt.Errorf("no machine type for plugin type %s", t)
}

// Signature is the IR function type of a thunk for o.
func Signature(o *keywords.Overload) (*types.FuncType, error) {
	ret := types.Type(types.Void)
	if o.HasReturn {
		t, err := PluginType(o.ReturnType)
		if err != nil {
			return nil, fmt.Errorf("return value: %w", err)
		}
		ret = t
	}
	params := make([]types.Type, len(o.Args))
	for i, a := range o.Args {
		t, err := PluginType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		params[i] = t
	}
	return types.NewFunc(ret, params...), nil
}

// pluginSignature is sig as the plugin exports it: float results travel in
// a dword register.
func pluginSignature(sig *types.FuncType) *types.FuncType {
	ret := sig.RetType
	if types.Equal(ret, types.Float) {
		ret = types.I32
	}
	return types.NewFunc(ret, sig.Params...)
}

// newThunk declares an internal function with sig and one named parameter
// per argument.
func newThunk(m *ir.Module, name string, sig *types.FuncType) *ir.Func {
	params := make([]*ir.Param, len(sig.Params))
	for i, t := range sig.Params {
		params[i] = ir.NewParam(fmt.Sprintf("arg%d", i), t)
	}
	f := m.NewFunc(name, sig.RetType, params...)
	f.Linkage = enum.LinkageInternal
	return f
}

// forward calls fn with the thunk's own parameters and returns the result,
// reinterpreting a dword result as float when the thunk returns float.
func forward(b *ir.Block, thunk *ir.Func, fn value.Value) {
	args := make([]value.Value, len(thunk.Params))
	for i, p := range thunk.Params {
		args[i] = p
	}
	res := b.NewCall(fn, args...)
	switch ret := thunk.Sig.RetType; {
	case types.Equal(ret, types.Void):
		b.NewRet(nil)
	case types.Equal(ret, types.Float):
		b.NewRet(b.NewBitCast(res, types.Float))
	default:
		b.NewRet(res)
	}
}

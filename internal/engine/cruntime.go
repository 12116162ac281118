package engine

import (
	"fmt"
	"log/slog"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/odb-lang/odb-compiler/internal/keywords"
)

// base carries the state shared by every engine: the module, lazily
// declared imports, the thunk cache and interned string constants.
type base struct {
	m      *ir.Module
	opts   Options
	logger *slog.Logger

	// imports by symbol name
	imports map[string]*ir.Func

	// thunks by plugin and export symbol
	thunks map[string]*ir.Func

	// string constants by content
	strs map[string]constant.Constant

	// per-plugin handle globals by plugin file stem
	handles map[string]*ir.Global
}

func newBase(m *ir.Module, opts Options) base {
	opts = opts.withDefaults()
	return base{
		m:       m,
		opts:    opts,
		logger:  opts.Logger,
		imports: map[string]*ir.Func{},
		thunks:  map[string]*ir.Func{},
		strs:    map[string]constant.Constant{},
		handles: map[string]*ir.Global{},
	}
}

func (e *base) Module() *ir.Module {
	return e.m
}

// declare returns the external function name, declaring it on first use.
func (e *base) declare(name string, ret types.Type, params ...types.Type) *ir.Func {
	if f, ok := e.imports[name]; ok {
		return f
	}
	ps := make([]*ir.Param, len(params))
	for i, t := range params {
		ps[i] = ir.NewParam("", t)
	}
	f := e.m.NewFunc(name, ret, ps...)
	e.imports[name] = f
	return f
}

// declareWinAPI declares a dllimport stdcall function from kernel32.
func (e *base) declareWinAPI(name string, ret types.Type, params ...types.Type) *ir.Func {
	if f, ok := e.imports[name]; ok {
		return f
	}
	f := e.declare(name, ret, params...)
	f.CallingConv = enum.CallingConvX86StdCall
	f.DLLStorageClass = enum.DLLStorageClassDLLImport
	return f
}

// callWinAPI calls a stdcall import, marking the call site to match.
func callWinAPI(b *ir.Block, f *ir.Func, args ...value.Value) *ir.InstCall {
	call := b.NewCall(f, args...)
	call.CallingConv = enum.CallingConvX86StdCall
	return call
}

// cstring returns an i8* to a private NUL-terminated constant holding s.
func (e *base) cstring(s string) constant.Constant {
	if c, ok := e.strs[s]; ok {
		return c
	}
	data := constant.NewCharArrayFromString(s + "\x00")
	g := e.m.NewGlobalDef(fmt.Sprintf(".str.engine.%d", len(e.strs)), data)
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	zero := constant.NewInt(types.I32, 0)
	c := constant.NewGetElementPtr(data.Typ, g, zero, zero)
	e.strs[s] = c
	return c
}

// handle returns the global holding the module handle of a plugin.
func (e *base) handle(p Plugin, suffix string) *ir.Global {
	if g, ok := e.handles[p.Name]; ok {
		return g
	}
	g := e.m.NewGlobalDef(p.Name+suffix, constant.NewNull(i8ptr))
	g.Linkage = enum.LinkageInternal
	e.handles[p.Name] = g
	return g
}

func thunkKey(o *keywords.Overload) string {
	return o.Plugin + "%" + o.Symbol
}

func (e *base) cachedThunk(o *keywords.Overload) (*ir.Func, bool) {
	f, ok := e.thunks[thunkKey(o)]
	return f, ok
}

func (e *base) thunkSignature(kw *keywords.Keyword, o *keywords.Overload) (*types.FuncType, error) {
	if !o.Bound() {
		return nil, fmt.Errorf("%w: %s", ErrUnboundCommand, kw.Name)
	}
	sig, err := Signature(o)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", kw.Name, err)
	}
	return sig, nil
}

func (e *base) StringAdd(b *ir.Block, x, y value.Value) value.Value {
	strlen := e.declare("strlen", types.I32, i8ptr)
	malloc := e.declare("malloc", i8ptr, types.I32)
	strcpy := e.declare("strcpy", i8ptr, i8ptr, i8ptr)
	strcat := e.declare("strcat", i8ptr, i8ptr, i8ptr)

	n := b.NewAdd(b.NewCall(strlen, x), b.NewCall(strlen, y))
	buf := b.NewCall(malloc, b.NewAdd(n, constant.NewInt(types.I32, 1)))
	b.NewCall(strcpy, buf, x)
	b.NewCall(strcat, buf, y)
	return buf
}

func (e *base) StringCompare(b *ir.Block, pred enum.IPred, x, y value.Value) value.Value {
	strcmp := e.declare("strcmp", types.I32, i8ptr, i8ptr)
	return b.NewICmp(pred, b.NewCall(strcmp, x, y), constant.NewInt(types.I32, 0))
}

func (e *base) Exit(b *ir.Block, code int64) {
	exit := e.declare("exit", types.Void, types.I32)
	b.NewCall(exit, constant.NewInt(types.I32, code))
}

func (e *base) printString(b *ir.Block, s value.Value) {
	puts := e.declare("puts", types.I32, i8ptr)
	b.NewCall(puts, s)
}

// itoa converts an i32 to a decimal string in a stack buffer.
func (e *base) itoa(b *ir.Block, v value.Value) value.Value {
	itoa := e.declare("_itoa", i8ptr, types.I32, i8ptr, types.I32)
	bufTy := types.NewArray(20, types.I8)
	buf := b.NewAlloca(bufTy)
	zero := constant.NewInt(types.I32, 0)
	p := b.NewGetElementPtr(bufTy, buf, zero, zero)
	b.NewCall(itoa, v, p, constant.NewInt(types.I32, 10))
	return p
}

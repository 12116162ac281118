package engine

import (
	"log/slog"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/odb-lang/odb-compiler/internal/keywords"
)

// Runtime delegates plugin loading and engine start-up to the ODB runtime
// library, which exports:
//
//	void* loadPlugin(const char* pluginName);
//	void* getFunctionAddress(void* plugin, const char* functionName);
//	void debugPrintf(const char* fmt, ...);
//	int initialiseEngine();
type Runtime struct {
	base

	loadPlugin         *ir.Func
	getFunctionAddress *ir.Func
	debugPrintf        *ir.Func
	initialiseEngine   *ir.Func
}

// NewRuntime declares the runtime library imports in m.
func NewRuntime(m *ir.Module, opts Options) *Runtime {
	e := &Runtime{base: newBase(m, opts)}
	e.loadPlugin = e.declareImport("loadPlugin", i8ptr, i8ptr)
	e.getFunctionAddress = e.declareImport("getFunctionAddress", i8ptr, i8ptr, i8ptr)
	e.debugPrintf = e.declareImport("debugPrintf", types.Void, i8ptr)
	e.debugPrintf.Sig.Variadic = true
	e.initialiseEngine = e.declareImport("initialiseEngine", types.I32)
	return e
}

func (e *Runtime) declareImport(name string, ret types.Type, params ...types.Type) *ir.Func {
	f := e.declare(name, ret, params...)
	f.DLLStorageClass = enum.DLLStorageClassDLLImport
	return f
}

func (e *Runtime) pluginHandle(p Plugin) *ir.Global {
	return e.handle(p, "Handle")
}

// CommandThunk builds a thunk that asks the runtime for the export's
// address and forwards its arguments. The handle was filled in by main.
func (e *Runtime) CommandThunk(kw *keywords.Keyword, o *keywords.Overload) (*ir.Func, error) {
	if f, ok := e.cachedThunk(o); ok {
		return f, nil
	}
	sig, err := e.thunkSignature(kw, o)
	if err != nil {
		return nil, err
	}
	plugin := PluginFromPath(o.Plugin)
	f := newThunk(e.m, ThunkName(kw, o), sig)

	b := f.NewBlock("entry")
	h := b.NewLoad(i8ptr, e.pluginHandle(plugin))
	addr := b.NewCall(e.getFunctionAddress, h, e.cstring(o.Symbol))
	fn := b.NewBitCast(addr, types.NewPointer(pluginSignature(sig)))
	forward(b, f, fn)

	e.thunks[thunkKey(o)] = f
	e.logger.Debug("created command thunk",
		slog.String("command", kw.Name), slog.String("thunk", f.Name()), slog.String("plugin", plugin.Name))
	return f, nil
}

// EntryPoint defines main: load every plugin, initialise the engine, run
// game. Any failure returns 1.
func (e *Runtime) EntryPoint(game *ir.Func, plugins []Plugin) (*ir.Func, error) {
	plugins, err := orderPlugins(plugins, e.opts.Core)
	if err != nil {
		return nil, err
	}

	main := e.m.NewFunc("main", types.I32)
	loads := make([]*ir.Block, len(plugins))
	for i, p := range plugins {
		loads[i] = main.NewBlock("load" + p.Name)
	}
	failedToLoad := main.NewBlock("failedToLoadPlugin")
	initEngine := main.NewBlock("initialiseEngine")
	failed := main.NewBlock("failedToInitialiseEngine")
	launch := main.NewBlock("launchGame")

	for i, p := range plugins {
		b := loads[i]
		h := b.NewCall(e.loadPlugin, e.cstring(p.File))
		b.NewStore(h, e.pluginHandle(p))
		next := initEngine
		if i+1 < len(plugins) {
			next = loads[i+1]
		}
		b.NewCondBr(b.NewICmp(enum.IPredNE, h, constant.NewNull(i8ptr)), next, failedToLoad)
	}

	failedToLoad.NewCall(e.debugPrintf, e.cstring("Failed to load plugin.\n"))
	failedToLoad.NewRet(constant.NewInt(types.I32, 1))

	res := initEngine.NewCall(e.initialiseEngine)
	initEngine.NewCondBr(initEngine.NewICmp(enum.IPredEQ, res, constant.NewInt(types.I32, 0)), launch, failed)

	failed.NewCall(e.debugPrintf, e.cstring("Failed to initialise engine.\n"))
	failed.NewRet(constant.NewInt(types.I32, 1))

	launch.NewCall(game)
	launch.NewRet(constant.NewInt(types.I32, 0))

	e.logger.Debug("created entry point", slog.Int("plugins", len(plugins)))
	return main, nil
}

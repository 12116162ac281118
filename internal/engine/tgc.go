package engine

import (
	"log/slog"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/odb-lang/odb-compiler/internal/keywords"
)

// Exports of the core plugin the entry point calls into.
const (
	symGetGlobPtr          = "?GetGlobPtr@@YAKXZ"
	symPassErrorHandlerPtr = "?PassErrorHandlerPtr@@YAXPAX@Z"
	symPassDLLs            = "?PassDLLs@@YAXXZ"
	symInitDisplay         = "?InitDisplay@@YAKKKKKPAUHINSTANCE__@@PAD@Z"
)

// TGC drives the original DarkBASIC Professional plugins directly through
// the Win32 loader.
type TGC struct {
	base

	loadLibrary     *ir.Func
	getProcAddress  *ir.Func
	getLastError    *ir.Func
	getModuleHandle *ir.Func
}

// NewTGC declares the kernel32 imports in m and returns the engine.
func NewTGC(m *ir.Module, opts Options) *TGC {
	e := &TGC{base: newBase(m, opts)}
	e.loadLibrary = e.declareWinAPI("LoadLibraryA", i8ptr, i8ptr)
	e.getLastError = e.declareWinAPI("GetLastError", types.I32)
	e.getProcAddress = e.declareWinAPI("GetProcAddress", i8ptr, i8ptr, i8ptr)
	e.getModuleHandle = e.declareWinAPI("GetModuleHandleA", i8ptr, i8ptr)
	return e
}

func (e *TGC) hmodule(p Plugin) *ir.Global {
	return e.handle(p, "HModule")
}

// procAddress appends a GetProcAddress lookup of symbol in p and returns
// the result cast to a pointer to sig.
func (e *TGC) procAddress(b *ir.Block, p Plugin, symbol string, sig *types.FuncType) value.Value {
	h := b.NewLoad(i8ptr, e.hmodule(p))
	addr := callWinAPI(b, e.getProcAddress, h, e.cstring(symbol))
	return b.NewBitCast(addr, types.NewPointer(sig))
}

// CommandThunk builds a thunk that loads the plugin on first use, resolves
// the export and forwards its arguments.
func (e *TGC) CommandThunk(kw *keywords.Keyword, o *keywords.Overload) (*ir.Func, error) {
	if f, ok := e.cachedThunk(o); ok {
		return f, nil
	}
	sig, err := e.thunkSignature(kw, o)
	if err != nil {
		return nil, err
	}
	plugin := PluginFromPath(o.Plugin)
	f := newThunk(e.m, ThunkName(kw, o), sig)

	entry := f.NewBlock("entry")
	load := f.NewBlock("loadPlugin")
	call := f.NewBlock("call")

	hmodule := e.hmodule(plugin)
	cur := entry.NewLoad(i8ptr, hmodule)
	entry.NewCondBr(entry.NewICmp(enum.IPredEQ, cur, constant.NewNull(i8ptr)), load, call)

	lib := callWinAPI(load, e.loadLibrary, e.cstring(plugin.File))
	load.NewStore(lib, hmodule)
	load.NewBr(call)

	forward(call, f, e.procAddress(call, plugin, o.Symbol, pluginSignature(sig)))

	e.thunks[thunkKey(o)] = f
	e.logger.Debug("created command thunk",
		slog.String("command", kw.Name), slog.String("thunk", f.Name()), slog.String("plugin", plugin.Name))
	return f, nil
}

// EntryPoint defines main. Plugins are loaded core first; their handles go
// into the core's GlobStruct before the display is initialised and game
// runs.
func (e *TGC) EntryPoint(game *ir.Func, plugins []Plugin) (*ir.Func, error) {
	plugins, err := orderPlugins(plugins, e.opts.Core)
	if err != nil {
		return nil, err
	}
	core := plugins[0]

	main := e.m.NewFunc("main", types.I32)
	loads := make([]*ir.Block, len(plugins))
	for i, p := range plugins {
		loads[i] = main.NewBlock("load" + p.Name)
	}
	failedToLoad := main.NewBlock("failedToLoadPlugin")
	initEngine := main.NewBlock("initialiseEngine")
	failedToInitDisplay := main.NewBlock("failedToInitDisplay")
	launch := main.NewBlock("launchGame")

	loaded := map[string]bool{}
	for i, p := range plugins {
		b := loads[i]
		e.printString(b, e.cstring("Loading plugin "+p.Name))
		h := callWinAPI(b, e.loadLibrary, e.cstring(p.File))
		b.NewStore(h, e.hmodule(p))
		next := initEngine
		if i+1 < len(plugins) {
			next = loads[i+1]
		}
		b.NewCondBr(b.NewICmp(enum.IPredNE, h, constant.NewNull(i8ptr)), next, failedToLoad)
		loaded[p.Name] = true
	}

	e.printString(failedToLoad, e.cstring("Failed to load plugin. GetLastError returned"))
	code := callWinAPI(failedToLoad, e.getLastError)
	e.printString(failedToLoad, e.itoa(failedToLoad, code))
	failedToLoad.NewRet(constant.NewInt(types.I32, 1))

	b := initEngine
	e.printString(b, e.cstring("Initialising engine."))
	getGlob := e.procAddress(b, core, symGetGlobPtr, types.NewFunc(types.I32))
	glob := b.NewIntToPtr(b.NewCall(getGlob), types.NewPointer(globStructType))
	e.fillGlobStruct(b, glob, loaded)

	errPtr := b.NewAlloca(types.I32)
	b.NewStore(constant.NewInt(types.I32, 0), errPtr)
	passErr := e.procAddress(b, core, symPassErrorHandlerPtr, types.NewFunc(types.Void, types.NewPointer(types.I32)))
	b.NewCall(passErr, errPtr)
	passDLLs := e.procAddress(b, core, symPassDLLs, types.NewFunc(types.Void))
	b.NewCall(passDLLs)

	d := e.opts.Display
	initDisplaySig := types.NewFunc(types.I32, types.I32, types.I32, types.I32, types.I32, i8ptr, i8ptr)
	initDisplay := e.procAddress(b, core, symInitDisplay, initDisplaySig)
	instance := callWinAPI(b, e.getModuleHandle, constant.NewNull(i8ptr))
	res := b.NewCall(initDisplay,
		constant.NewInt(types.I32, int64(d.Mode)),
		constant.NewInt(types.I32, int64(d.Width)),
		constant.NewInt(types.I32, int64(d.Height)),
		constant.NewInt(types.I32, int64(d.Depth)),
		instance,
		constant.NewNull(i8ptr))
	b.NewCondBr(b.NewICmp(enum.IPredEQ, res, constant.NewInt(types.I32, 0)), launch, failedToInitDisplay)

	e.printString(failedToInitDisplay, e.cstring("Failed to init display."))
	failedToInitDisplay.NewRet(constant.NewInt(types.I32, 1))

	e.printString(launch, e.cstring("Running game."))
	launch.NewCall(game)
	launch.NewRet(constant.NewInt(types.I32, 0))

	e.logger.Debug("created entry point", slog.Int("plugins", len(plugins)), slog.String("core", core.Name))
	return main, nil
}

// fillGlobStruct stores every loaded plugin's handle into its slot and null
// into the rest.
func (e *TGC) fillGlobStruct(b *ir.Block, glob value.Value, loaded map[string]bool) {
	var slots [globStructSlots]value.Value
	for _, s := range slotsInOrder() {
		if loaded[s.plugin] {
			slots[s.slot] = b.NewLoad(i8ptr, e.handles[s.plugin])
		}
	}
	for i, v := range slots {
		if v == nil {
			v = constant.NewNull(i8ptr)
		}
		ptr := b.NewGetElementPtr(globStructType, glob,
			constant.NewInt(types.I32, 0),
			constant.NewInt(types.I32, 1),
			constant.NewInt(types.I32, int64(i)))
		b.NewStore(v, ptr)
	}
}

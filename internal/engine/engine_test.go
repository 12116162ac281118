package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/odb-lang/odb-compiler/internal/keywords"
)

func blockNames(f *ir.Func) []string {
	names := make([]string, len(f.Blocks))
	for i, b := range f.Blocks {
		names[i] = b.Name()
	}
	return names
}

func funcNames(m *ir.Module) map[string]bool {
	out := map[string]bool{}
	for _, f := range m.Funcs {
		out[f.Name()] = true
	}
	return out
}

var rndKeyword = &keywords.Keyword{
	Name: "rnd",
	Overloads: []keywords.Overload{{
		Plugin:     "DBProCore.dll",
		Symbol:     "?Rnd@@YAHH@Z",
		Args:       []keywords.Arg{{Type: keywords.TypeInteger}},
		HasReturn:  true,
		ReturnType: keywords.TypeInteger,
	}},
}

var cameraAngleKeyword = &keywords.Keyword{
	Name: "camera angle x",
	Overloads: []keywords.Overload{
		{
			Plugin: "DBProCameraDebug.dll", Symbol: "?GetXAngle@@YAKXZ",
			HasReturn: true, ReturnType: keywords.TypeFloat,
		},
		{
			Plugin: "DBProCameraDebug.dll", Symbol: "?GetXAngleEx@@YAKH@Z",
			Args:      []keywords.Arg{{Type: keywords.TypeInteger}},
			HasReturn: true, ReturnType: keywords.TypeFloat,
		},
	},
}

func TestThunkName(t *testing.T) {
	tests := []struct {
		kw   *keywords.Keyword
		o    int
		want string
	}{
		{rndKeyword, 0, "DBCommandRnd"},
		{cameraAngleKeyword, 0, "DBCommandCameraAngleX0"},
		{cameraAngleKeyword, 1, "DBCommandCameraAngleX1"},
		{&keywords.Keyword{Name: "str$", Overloads: []keywords.Overload{{}}}, 0, "DBCommandStrS"},
		{&keywords.Keyword{Name: "make object cube", Overloads: []keywords.Overload{{}}}, 0, "DBCommandMakeObjectCube"},
	}
	for _, tt := range tests {
		if got := ThunkName(tt.kw, &tt.kw.Overloads[tt.o]); got != tt.want {
			t.Fatalf("ThunkName(%q) expected=%q, got=%q", tt.kw.Name, tt.want, got)
		}
	}
}

func TestSignature(t *testing.T) {
	o := &keywords.Overload{
		Args: []keywords.Arg{
			{Type: keywords.TypeInteger}, {Type: keywords.TypeFloat}, {Type: keywords.TypeString},
			{Type: keywords.TypeDouble}, {Type: keywords.TypeLong}, {Type: keywords.TypeDword},
		},
		HasReturn:  true,
		ReturnType: keywords.TypeFloat,
	}
	sig, err := Signature(o)
	if err != nil {
		t.Fatalf("Signature: %v", err)
	}
	want := types.NewFunc(types.Float, types.I32, types.Float, i8ptr, types.Double, types.I64, types.I32)
	if !sig.Equal(want) {
		t.Fatalf("expected=%s, got=%s", want, sig)
	}
	if got := pluginSignature(sig).RetType; !got.Equal(types.I32) {
		t.Fatalf("float results travel as i32, got %s", got)
	}

	_, err = Signature(&keywords.Overload{Args: []keywords.Arg{{Name: "x"}}})
	if err == nil {
		t.Fatalf("an argument without a type must not produce a signature")
	}
}

func TestTGCCommandThunk(t *testing.T) {
	m := ir.NewModule()
	e := NewTGC(m, Options{})

	f, err := e.CommandThunk(rndKeyword, &rndKeyword.Overloads[0])
	if err != nil {
		t.Fatalf("CommandThunk: %v", err)
	}
	again, _ := e.CommandThunk(rndKeyword, &rndKeyword.Overloads[0])
	if f != again {
		t.Fatalf("thunks must be created once per export")
	}
	if f.Linkage != enum.LinkageInternal {
		t.Fatalf("linkage expected=%s, got=%s", enum.LinkageInternal, f.Linkage)
	}
	if diff := cmp.Diff([]string{"entry", "loadPlugin", "call"}, blockNames(f)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if len(e.handles) != 1 || e.handles["DBProCore"] == nil {
		t.Fatalf("expected one DBProCoreHModule global, got %v", e.handles)
	}
}

func TestThunkFloatResultIsReinterpreted(t *testing.T) {
	e := NewTGC(ir.NewModule(), Options{})
	f, err := e.CommandThunk(cameraAngleKeyword, &cameraAngleKeyword.Overloads[1])
	if err != nil {
		t.Fatalf("CommandThunk: %v", err)
	}
	call := f.Blocks[len(f.Blocks)-1]
	ret, ok := call.Term.(*ir.TermRet)
	if !ok {
		t.Fatalf("expected ret terminator, got %T", call.Term)
	}
	cast, ok := ret.X.(*ir.InstBitCast)
	if !ok {
		t.Fatalf("expected the result to be bitcast, got %T", ret.X)
	}
	if !cast.From.Type().Equal(types.I32) || !cast.To.Equal(types.Float) {
		t.Fatalf("expected i32 -> float, got %s -> %s", cast.From.Type(), cast.To)
	}
}

func TestUnboundCommand(t *testing.T) {
	kw := &keywords.Keyword{Name: "print", Overloads: []keywords.Overload{{Args: []keywords.Arg{{Name: "x"}}}}}
	for _, e := range []Interface{NewTGC(ir.NewModule(), Options{}), NewRuntime(ir.NewModule(), Options{})} {
		if _, err := e.CommandThunk(kw, &kw.Overloads[0]); !errors.Is(err, ErrUnboundCommand) {
			t.Fatalf("%T: expected ErrUnboundCommand, got %v", e, err)
		}
	}
}

func gameFunc(m *ir.Module) *ir.Func {
	game := m.NewFunc("__DBmain", types.Void)
	game.NewBlock("entry").NewRet(nil)
	return game
}

func TestTGCEntryPoint(t *testing.T) {
	m := ir.NewModule()
	e := NewTGC(m, Options{})
	plugins := []Plugin{
		PluginFromPath("plugins/DBProBasic3DDebug.dll"),
		PluginFromPath("DBProCore.dll"),
		PluginFromPath("DBProBasic3DDebug.dll"),
	}
	main, err := e.EntryPoint(gameFunc(m), plugins)
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	want := []string{
		"loadDBProCore", "loadDBProBasic3DDebug",
		"failedToLoadPlugin", "initialiseEngine", "failedToInitDisplay", "launchGame",
	}
	if diff := cmp.Diff(want, blockNames(main)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}

	// one store per GlobStruct slot, plus the error flag
	var stores int
	for _, inst := range main.Blocks[3].Insts {
		if _, ok := inst.(*ir.InstStore); ok {
			stores++
		}
	}
	if stores != globStructSlots+1 {
		t.Fatalf("initialiseEngine stores expected=%d, got=%d", globStructSlots+1, stores)
	}

	for _, name := range []string{"LoadLibraryA", "GetProcAddress", "GetLastError", "GetModuleHandleA", "puts", "_itoa"} {
		if !funcNames(m)[name] {
			t.Fatalf("expected %s to be declared", name)
		}
	}
}

func TestEntryPointDisplayOptions(t *testing.T) {
	m := ir.NewModule()
	e := NewTGC(m, Options{Display: Display{Mode: 2, Width: 1024, Height: 768, Depth: 16}})
	main, err := e.EntryPoint(gameFunc(m), []Plugin{PluginFromPath("DBProCore.dll")})
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	var initDisplay *ir.InstCall
	for _, inst := range main.Blocks[2].Insts {
		if call, ok := inst.(*ir.InstCall); ok && len(call.Args) == 6 {
			initDisplay = call
		}
	}
	if initDisplay == nil {
		t.Fatalf("InitDisplay call not found")
	}
	var got []string
	for _, a := range initDisplay.Args[:4] {
		got = append(got, a.Ident())
	}
	if diff := cmp.Diff([]string{"2", "1024", "768", "16"}, got); diff != "" {
		t.Fatalf("display arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestEntryPointErrors(t *testing.T) {
	tests := []struct {
		name    string
		plugins []Plugin
		want    error
	}{
		{"no plugins", nil, ErrNoPlugins},
		{"no core", []Plugin{PluginFromPath("DBProTextDebug.dll")}, ErrCorePluginMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, e := range []Interface{NewTGC(ir.NewModule(), Options{}), NewRuntime(ir.NewModule(), Options{})} {
				_, err := e.EntryPoint(gameFunc(e.Module()), tt.plugins)
				if !errors.Is(err, tt.want) {
					t.Fatalf("%T: expected=%v, got=%v", e, tt.want, err)
				}
			}
		})
	}
}

func TestCustomCorePlugin(t *testing.T) {
	m := ir.NewModule()
	e := NewRuntime(m, Options{Core: "ODBCore"})
	main, err := e.EntryPoint(gameFunc(m), []Plugin{PluginFromPath("Extra.dll"), PluginFromPath("ODBCore.dll")})
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	if got := main.Blocks[0].Name(); got != "loadODBCore" {
		t.Fatalf("first block expected=%q, got=%q", "loadODBCore", got)
	}
}

func TestRuntimeEngine(t *testing.T) {
	m := ir.NewModule()
	e := NewRuntime(m, Options{})
	f, err := e.CommandThunk(rndKeyword, &rndKeyword.Overloads[0])
	if err != nil {
		t.Fatalf("CommandThunk: %v", err)
	}
	if diff := cmp.Diff([]string{"entry"}, blockNames(f)); diff != "" {
		t.Fatalf("thunk blocks mismatch (-want +got):\n%s", diff)
	}

	main, err := e.EntryPoint(gameFunc(m), []Plugin{PluginFromPath("DBProCore.dll")})
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	want := []string{"loadDBProCore", "failedToLoadPlugin", "initialiseEngine", "failedToInitialiseEngine", "launchGame"}
	if diff := cmp.Diff(want, blockNames(main)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
	if !e.debugPrintf.Sig.Variadic {
		t.Fatalf("debugPrintf must be variadic")
	}
}

func TestStringHelpers(t *testing.T) {
	m := ir.NewModule()
	e := NewRuntime(m, Options{})
	f := m.NewFunc("f", types.I1, ir.NewParam("a", i8ptr), ir.NewParam("b", i8ptr))
	b := f.NewBlock("entry")
	sum := e.StringAdd(b, f.Params[0], f.Params[1])
	if !sum.Type().Equal(i8ptr) {
		t.Fatalf("StringAdd type expected=%s, got=%s", i8ptr, sum.Type())
	}
	cmpRes := e.StringCompare(b, enum.IPredEQ, sum, f.Params[1])
	if !cmpRes.Type().Equal(types.I1) {
		t.Fatalf("StringCompare type expected=i1, got=%s", cmpRes.Type())
	}
	b.NewRet(cmpRes)
	for _, name := range []string{"strlen", "malloc", "strcpy", "strcat", "strcmp"} {
		if !funcNames(m)[name] {
			t.Fatalf("expected %s to be declared", name)
		}
	}
}

func TestGlobStructSlot(t *testing.T) {
	tests := []struct {
		plugin string
		slot   int
		ok     bool
	}{
		{"DBProSetupDebug", 0, true},
		{"DBProBasic3DDebug", 13, true},
		{"DBProSoundDebug", 26, true},
		{"DBProTransformsDebug", 35, true},
		{"DBProCore", 0, false},
	}
	for _, tt := range tests {
		slot, ok := GlobStructSlot(tt.plugin)
		if slot != tt.slot || ok != tt.ok {
			t.Fatalf("GlobStructSlot(%q) expected=(%d, %v), got=(%d, %v)", tt.plugin, tt.slot, tt.ok, slot, ok)
		}
	}
}

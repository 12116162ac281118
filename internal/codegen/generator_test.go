package codegen

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/engine"
	"github.com/odb-lang/odb-compiler/internal/keywords"
	"github.com/odb-lang/odb-compiler/internal/parser"
	"github.com/odb-lang/odb-compiler/internal/types"
)

var corePlugin = engine.PluginFromPath("DBProCore.dll")

func testIndex(t *testing.T) *keywords.Index {
	t.Helper()
	ix := keywords.NewIndex()
	kws := []*keywords.Keyword{
		{Name: "print", Overloads: []keywords.Overload{{
			Plugin: "DBProTextDebug.dll", Symbol: "?PrintS@@YAXPAD@Z",
			Args: []keywords.Arg{{Type: keywords.TypeString, Name: "text"}},
		}}},
		{Name: "rnd", Overloads: []keywords.Overload{{
			Plugin: "DBProCore.dll", Symbol: "?Rnd@@YAHH@Z",
			Args:      []keywords.Arg{{Type: keywords.TypeInteger, Name: "range"}},
			HasReturn: true, ReturnType: keywords.TypeInteger,
		}}},
		{Name: "position object", Overloads: []keywords.Overload{{
			Plugin: "DBProBasic3DDebug.dll", Symbol: "?Position@@YAXHMMM@Z",
			Args: []keywords.Arg{
				{Type: keywords.TypeInteger}, {Type: keywords.TypeFloat},
				{Type: keywords.TypeFloat}, {Type: keywords.TypeFloat},
			},
		}}},
		// from a keyword spec file: no plugin export behind it
		{Name: "sync", Overloads: []keywords.Overload{{}}},
	}
	if err := ix.AddAll(kws); err != nil {
		t.Fatal(err)
	}
	return ix
}

func compile(t *testing.T, src string, plugins ...engine.Plugin) (*ir.Module, error) {
	t.Helper()
	ix := testIndex(t)
	frag, err := parser.Parse([]byte(src), parser.WithKeywords(ix), parser.WithFilename("test.dba"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	prog := ast.NewProgram()
	if err := prog.AddFragment(frag); err != nil {
		t.Fatalf("AddFragment: %v", err)
	}
	info, err := types.Check(prog, ix, nil)
	if err != nil {
		t.Fatalf("type check failed: %v", err)
	}
	eng := engine.NewTGC(ir.NewModule(), engine.Options{})
	return Generate(prog, info, eng, Options{Keywords: ix, Plugins: plugins, SourceFilename: "test.dba"})
}

func mustCompile(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := compile(t, src, corePlugin)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	return m
}

func compileErr(t *testing.T, src string, plugins ...engine.Plugin) diag.Diagnostic {
	t.Helper()
	_, err := compile(t, src, plugins...)
	var list diag.List
	if !errors.As(err, &list) || len(list) == 0 {
		t.Fatalf("expected diag.List, got %T (%v)", err, err)
	}
	return list[0]
}

func findFunc(t *testing.T, m *ir.Module, name string) *ir.Func {
	t.Helper()
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

func hasFunc(m *ir.Module, name string) bool {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return true
		}
	}
	return false
}

func blockNames(f *ir.Func) []string {
	names := make([]string, len(f.Blocks))
	for i, b := range f.Blocks {
		names[i] = b.Name()
	}
	return names
}

func containsBlock(f *ir.Func, name string) bool {
	for _, n := range blockNames(f) {
		if n == name {
			return true
		}
	}
	return false
}

func TestGenerateModuleLayout(t *testing.T) {
	m := mustCompile(t, "x = rnd(10)\nprint \"hello\"\n")

	if m.TargetTriple != DefaultTriple {
		t.Fatalf("triple expected=%s, got=%s", DefaultTriple, m.TargetTriple)
	}
	for _, name := range []string{GameEntryName, "main", "DBCommandRnd", "DBCommandPrint"} {
		if !hasFunc(m, name) {
			t.Fatalf("module lacks %s", name)
		}
	}

	main := findFunc(t, m, "main")
	if main.Blocks[0].Name() != "loadDBProCore" {
		t.Fatalf("core plugin must load first, blocks=%v", blockNames(main))
	}
	if !containsBlock(main, "loadDBProTextDebug") {
		t.Fatalf("plugins used by commands must be loaded, blocks=%v", blockNames(main))
	}
}

func TestThunksAreShared(t *testing.T) {
	m := mustCompile(t, "print \"a\"\nprint \"b\"\nprint \"a\"\n")
	n := 0
	for _, f := range m.Funcs {
		if f.Name() == "DBCommandPrint" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected one print thunk, got %d", n)
	}
}

func TestStringLiteralsAreDeduplicated(t *testing.T) {
	m := mustCompile(t, "print \"a\"\nprint \"b\"\nprint \"a\"\n")
	n := 0
	for _, g := range m.Globals {
		if strings.HasPrefix(g.Name(), ".str."+GameEntryName+".") {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("expected two program string constants, got %d", n)
	}
}

func TestArgumentsConvertToThunkTypes(t *testing.T) {
	m := mustCompile(t, "position object 1, 2, 3.5, 4\n")
	thunk := findFunc(t, m, "DBCommandPositionObject")
	want := []lltypes.Type{lltypes.I32, lltypes.Float, lltypes.Float, lltypes.Float}
	if len(thunk.Params) != len(want) {
		t.Fatalf("params expected=%d, got=%d", len(want), len(thunk.Params))
	}
	for i, p := range thunk.Params {
		if !p.Typ.Equal(want[i]) {
			t.Fatalf("param %d expected=%s, got=%s", i, want[i], p.Typ)
		}
	}
}

func TestUserFunctions(t *testing.T) {
	src := `x = add(1, 2)
function add(a, b)
  c = a + b
endfunction c
function greet(name$)
  print "hi " + name$
endfunction`
	m := mustCompile(t, src)

	add := findFunc(t, m, "__DBadd")
	if !add.Sig.RetType.Equal(lltypes.I32) || len(add.Params) != 2 {
		t.Fatalf("add expected i32(i32, i32), got %s", add.Sig)
	}
	greet := findFunc(t, m, "__DBgreet")
	if !greet.Sig.RetType.Equal(lltypes.Void) {
		t.Fatalf("greet expected void, got %s", greet.Sig.RetType)
	}
	if !hasFunc(m, "strcat") {
		t.Fatalf("string concatenation must use the engine's string helpers")
	}
}

func TestControlFlowVerifies(t *testing.T) {
	src := `for i = 1 to 10 step 2
  if i = 5 then exit
next i
while i > 0
  dec i
endwhile
repeat
  inc i, 2
until i >= 10
do
  exit
loop
select i
  case 1, 2
    print "low"
  endcase
  case default
    print "other"
  endcase
endselect
a$ = "x" + "y"
if a$ = "xy" then print a$ else print "no"
f# = 2.0 ^ 3
b = not (i > 2) and (i << 1) > 3
`
	m := mustCompile(t, src)
	if err := Verify(m); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !hasFunc(m, "strcmp") || !hasFunc(m, "llvm.pow.f64") {
		t.Fatalf("expected strcmp and llvm.pow.f64 declarations")
	}
}

func TestForVariableStepCountsDown(t *testing.T) {
	m := mustCompile(t, "s = -1\nfor i = 10 to 1 step s\n  x = i\nnext i\n")
	if err := Verify(m); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	game := findFunc(t, m, GameEntryName)
	var cond *ir.Block
	for _, b := range game.Blocks {
		if strings.HasPrefix(b.Name(), "while.cond.") {
			cond = b
		}
	}
	if cond == nil {
		t.Fatalf("no loop condition block, blocks=%v", blockNames(game))
	}
	var preds []enum.IPred
	var or bool
	for _, inst := range cond.Insts {
		switch inst := inst.(type) {
		case *ir.InstICmp:
			preds = append(preds, inst.Pred)
		case *ir.InstOr:
			or = true
		}
	}
	want := []enum.IPred{enum.IPredSGT, enum.IPredSLE, enum.IPredSLT, enum.IPredSGE}
	if diff := cmp.Diff(want, preds); diff != "" {
		t.Fatalf("condition must test the step sign each iteration (-want +got):\n%s", diff)
	}
	if !or {
		t.Fatalf("condition must combine both directions with or")
	}
}

func TestArrays(t *testing.T) {
	m := mustCompile(t, "dim a(3, 4)\na(1, 2) = 7\nx = a(1, 2)\n")
	game := findFunc(t, m, GameEntryName)
	var found bool
	for _, inst := range game.Blocks[0].Insts {
		if a, ok := inst.(*ir.InstAlloca); ok {
			if arr, ok := a.ElemType.(*lltypes.ArrayType); ok && arr.Len == 20 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected a [20 x i32] alloca for dim a(3, 4)")
	}
}

func TestGosubReturn(t *testing.T) {
	src := `gosub sub
end
sub:
x = 1
return`
	m := mustCompile(t, src)
	if !hasFunc(m, "gosubPushAddress") || !hasFunc(m, "gosubPopAddress") {
		t.Fatalf("gosub helpers missing")
	}
	game := findFunc(t, m, GameEntryName)
	var sw *ir.TermSwitch
	for _, b := range game.Blocks {
		if s, ok := b.Term.(*ir.TermSwitch); ok {
			sw = s
		}
	}
	if sw == nil {
		t.Fatalf("return must dispatch with a switch, blocks=%v", blockNames(game))
	}
	if len(sw.Cases) != 1 {
		t.Fatalf("expected one continuation, got %d", len(sw.Cases))
	}
}

func TestReturnWithoutGosubFallsThrough(t *testing.T) {
	m := mustCompile(t, "x = 1\nreturn\nx = 2\n")
	if hasFunc(m, "gosubPopAddress") {
		t.Fatalf("a function without gosub must not pop")
	}
}

func TestGlobals(t *testing.T) {
	src := `global score as integer
function bump()
  score = score + 1
endfunction`
	m := mustCompile(t, src)
	for _, g := range m.Globals {
		if g.Name() == "g.score" {
			return
		}
	}
	t.Fatalf("expected module global g.score")
}

func TestUDTVariables(t *testing.T) {
	src := `type vec
  x as float
  y as float
endtype
local v as vec
v.x = 1.5
f# = v.y`
	m := mustCompile(t, src)
	var found bool
	for _, td := range m.TypeDefs {
		if td.Name() == "vec" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a named struct type vec")
	}
}

func TestEngineErrorsAreDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		plugins []engine.Plugin
		code    diag.Code
	}{
		{"no plugins", nil, diag.CodeEngineNoPlugins},
		{"core missing", []engine.Plugin{engine.PluginFromPath("DBProTextDebug.dll")}, diag.CodeEngineCorePluginMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := compileErr(t, "x = 1\n", tt.plugins...)
			if d.Code != tt.code {
				t.Fatalf("code expected=%s, got=%s", tt.code, d.Code)
			}
		})
	}
}

func TestUnboundCommand(t *testing.T) {
	d := compileErr(t, "sync\n", corePlugin)
	if d.Code != diag.CodeGenUnboundKeyword {
		t.Fatalf("code expected=%s, got=%s", diag.CodeGenUnboundKeyword, d.Code)
	}
	if d.Span.Line != 1 {
		t.Fatalf("expected the diagnostic on line 1, got %v", d.Span)
	}
}

func TestVerifyRejectsBrokenModules(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("broken", lltypes.I32)
	f.NewBlock("entry")
	g := m.NewFunc("badret", lltypes.I32)
	g.NewBlock("entry").NewRet(constant.NewFloat(lltypes.Double, 1))

	err := Verify(m)
	var ie *InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InternalError, got %T (%v)", err, err)
	}
	for _, want := range []string{"broken: block entry has no terminator", "badret: block entry returns double"} {
		if !strings.Contains(ie.Msg, want) {
			t.Fatalf("expected %q in:\n%s", want, ie.Msg)
		}
	}
}

func TestConvert(t *testing.T) {
	g := &Generator{}
	f := ir.NewModule().NewFunc("f", lltypes.Void)
	b := f.NewBlock("entry")

	tests := []struct {
		from constant.Constant
		to   lltypes.Type
		op   string
	}{
		{constant.NewInt(lltypes.I32, 1), lltypes.Double, "*ir.InstSIToFP"},
		{constant.NewFloat(lltypes.Double, 1), lltypes.I32, "*ir.InstFPToSI"},
		{constant.NewFloat(lltypes.Double, 1), lltypes.Float, "*ir.InstFPTrunc"},
		{constant.NewFloat(lltypes.Float, 1), lltypes.Double, "*ir.InstFPExt"},
		{constant.NewBool(true), lltypes.I32, "*ir.InstZExt"},
		{constant.NewInt(lltypes.I32, 1), lltypes.I64, "*ir.InstSExt"},
		{constant.NewInt(lltypes.I64, 1), lltypes.I32, "*ir.InstTrunc"},
		{constant.NewInt(lltypes.I32, 1), lltypes.I1, "*ir.InstICmp"},
	}
	var got, want []string
	for _, tt := range tests {
		v, err := g.convert(b, tt.from, tt.to)
		if err != nil {
			t.Fatalf("convert %s to %s: %v", tt.from.Type(), tt.to, err)
		}
		got = append(got, typeName(v))
		want = append(want, tt.op)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("casts mismatch (-want +got):\n%s", diff)
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

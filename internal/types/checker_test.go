package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/keywords"
	"github.com/odb-lang/odb-compiler/internal/parser"
)

func testIndex(t *testing.T) *keywords.Index {
	t.Helper()
	ix := keywords.NewIndex()
	kws := []*keywords.Keyword{
		{Name: "print", Overloads: []keywords.Overload{
			{Args: []keywords.Arg{{Name: "value"}}},
		}},
		{Name: "sync", Overloads: []keywords.Overload{{}}},
		{Name: "rnd", Overloads: []keywords.Overload{
			{Args: []keywords.Arg{{Type: keywords.TypeInteger}}, HasReturn: true, ReturnType: keywords.TypeInteger},
		}},
	}
	if err := ix.AddAll(kws); err != nil {
		t.Fatal(err)
	}
	return ix
}

func build(t *testing.T, src string) (*ast.Program, *keywords.Index) {
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
	return prog, ix
}

func mustCheck(t *testing.T, src string) (*ast.Program, *Info) {
	t.Helper()
	prog, ix := build(t, src)
	info, err := Check(prog, ix, nil)
	if err != nil {
		t.Fatalf("unexpected type errors: %v", err)
	}
	return prog, info
}

func checkErr(t *testing.T, src string) diag.Diagnostic {
	t.Helper()
	prog, ix := build(t, src)
	_, err := Check(prog, ix, nil)
	if err == nil {
		t.Fatalf("expected a type error for %q", src)
	}
	list := err.(diag.List)
	return list[0]
}

func TestProvisionalReferenceIsUpdated(t *testing.T) {
	prog, _ := mustCheck(t, "a = 1\nlocal a as float\n")
	tree := prog.Tree
	target := tree.Node(prog.MainStmts()[0]).(*ast.Assignment).Target
	if got := tree.SymOf(target).Type; got != ast.TypeFloat {
		t.Fatalf("reference type expected=%q, got=%q", ast.TypeFloat, got)
	}
}

func TestProvisionalReferenceConflict(t *testing.T) {
	d := checkErr(t, "type vec\n x as float\nendtype\na = 1\nlocal a as vec\n")
	if d.Code != diag.CodeTypeConflict {
		t.Fatalf("expected=%q, got=%q", diag.CodeTypeConflict, d.Code)
	}
	if len(d.LabeledSpans) != 2 {
		t.Fatalf("conflict should point at use and declaration, got %d spans", len(d.LabeledSpans))
	}
	if d.LabeledSpans[0].Span.Line != 4 || d.LabeledSpans[1].Span.Line != 5 {
		t.Fatalf("unexpected span lines %d and %d", d.LabeledSpans[0].Span.Line, d.LabeledSpans[1].Span.Line)
	}
}

func TestGlobalVisibleInFunctions(t *testing.T) {
	src := `global score# as float
function bump()
  score# = score# + 1
endfunction
bump()`
	prog, _ := mustCheck(t, src)
	tree := prog.Tree
	fd := tree.Node(prog.Functions()[0]).(*ast.FuncDecl)
	assign := tree.Node(tree.Node(fd.Body).(*ast.Block).Stmts[0]).(*ast.Assignment)
	if sym := tree.SymOf(assign.Target); sym.Scope != ast.ScopeGlobal {
		t.Fatalf("scope expected=%q, got=%q", ast.ScopeGlobal, sym.Scope)
	}
}

func TestFunctionReturnType(t *testing.T) {
	tests := []struct {
		src  string
		want ast.DataType
	}{
		{"function half(x#)\nendfunction x# / 2\ny# = half(3)", ast.TypeFloat},
		{"function name$()\nendfunction \"odb\"\nn$ = name$()", ast.TypeString},
		{"function big(a, b)\nendfunction a > b\nx = big(1, 2)", ast.TypeInteger},
		{"function early(a)\n if a then exitfunction 5\nendfunction 6\nx = early(1)", ast.TypeInteger},
	}
	for _, tt := range tests {
		prog, info := mustCheck(t, tt.src)
		fd := prog.Tree.Node(prog.Functions()[0]).(*ast.FuncDecl)
		f, ok := info.Function(fd.Name)
		if !ok {
			t.Fatalf("%q: function not recorded", tt.src)
		}
		if f.Return != tt.want {
			t.Fatalf("%q: return expected=%q, got=%q", tt.src, tt.want, f.Return)
		}
		call := prog.Tree.Node(prog.MainStmts()[0]).(*ast.Assignment).Value
		if got := prog.Tree.SymOf(call).Type; got != tt.want {
			t.Fatalf("%q: call type expected=%q, got=%q", tt.src, tt.want, got)
		}
	}
}

func TestFunctionCallsLaterFunction(t *testing.T) {
	src := `function a()
endfunction b#() + 1
function b#()
endfunction 2.5
x = a()`
	_, info := mustCheck(t, src)
	f, _ := info.Function("a")
	if f.Return != ast.TypeFloat {
		t.Fatalf("expected=%q, got=%q", ast.TypeFloat, f.Return)
	}
}

func TestUDTLayout(t *testing.T) {
	src := `type vec
  x as float
  y as float
  tag$
endtype
global v as vec
v.y = 2`
	_, info := mustCheck(t, src)
	u, ok := info.UDT("VEC")
	if !ok {
		t.Fatalf("type vec not recorded")
	}
	want := []Field{
		{Name: "x", Type: ast.TypeFloat},
		{Name: "y", Type: ast.TypeFloat},
		{Name: "tag$", Type: ast.TypeString},
	}
	if diff := cmp.Diff(want, u.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if i, _, ok := u.Field("Y"); !ok || i != 1 {
		t.Fatalf("field y expected at 1, got %d (%v)", i, ok)
	}
}

func TestArrayDims(t *testing.T) {
	prog, info := mustCheck(t, "#constant N = 4\ndim grid(N, N * 2 - 1)\ngrid(1, 2) = 3\n")
	decl := prog.MainStmts()[1]
	if diff := cmp.Diff([]int{4, 7}, info.Dims[decl]); diff != "" {
		t.Fatalf("dims mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayBoundsAllowEdgesAndVariables(t *testing.T) {
	mustCheck(t, "dim a(2, 3)\na(0, 0) = 1\na(2, 3) = 2\ni = 9\nx = a(i, 1)\n")
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
	}{
		{"undefined function", "x = missing(1)", diag.CodeTypeUndefinedFunction},
		{"function arity", "function f(a)\nendfunction a\nx = f(1, 2)", diag.CodeTypeArgumentCount},
		{"command arity", "sync 1", diag.CodeTypeArgumentCount},
		{"command argument type", "x = rnd(\"a\")", diag.CodeTypeInvalidOperation},
		{"array arity", "dim a(3)\na(1, 2) = 0", diag.CodeTypeArgumentCount},
		{"unknown field", "type vec\n x\nendtype\nglobal v as vec\nv.z = 1", diag.CodeTypeUnknownField},
		{"fields on a scalar", "a = 1\nb = a.x", diag.CodeTypeUnknownField},
		{"undefined label", "goto nowhere", diag.CodeTypeUndefinedLabel},
		{"label in another body", "here:\nfunction f()\n goto here\nendfunction", diag.CodeTypeUndefinedLabel},
		{"duplicate label", "a:\na:", diag.CodeTypeDuplicateLabel},
		{"non-constant dim", "n = 3\ndim a(n)", diag.CodeTypeNonConstantDim},
		{"index above bound", "dim a(2)\nx = a(5)", diag.CodeTypeIndexOutOfRange},
		{"negative index", "dim a(2, 2)\na(1, -1) = 0", diag.CodeTypeIndexOutOfRange},
		{"constant index above bound", "#constant N = 3\ndim a(N)\nx = a(N + 1)", diag.CodeTypeIndexOutOfRange},
		{"string arithmetic", "a$ = \"x\" - \"y\"", diag.CodeTypeInvalidOperation},
		{"string into integer", "a = \"x\"", diag.CodeTypeInvalidOperation},
		{"duplicate function", "function f()\nendfunction\nfunction f()\nendfunction", diag.CodeTypeDuplicateFunction},
		{"void function as value", "function f()\nendfunction\nx = f()", diag.CodeTypeStatementAsValue},
		{"duplicate declaration", "local a\nlocal a", diag.CodeTypeDuplicateDecl},
		{"mixed exit types", "function f()\n exitfunction \"s\"\nendfunction 1", diag.CodeTypeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := checkErr(t, tt.src)
			if d.Code != tt.code {
				t.Fatalf("expected=%q, got=%q (%s)", tt.code, d.Code, d.Message)
			}
			if d.Stage != diag.StageTypeCheck {
				t.Fatalf("stage expected=%q, got=%q", diag.StageTypeCheck, d.Stage)
			}
		})
	}
}

func TestBinaryResult(t *testing.T) {
	tests := []struct {
		op   ast.Kind
		l, r ast.DataType
		want ast.DataType
		ok   bool
	}{
		{ast.OpAdd, ast.TypeInteger, ast.TypeFloat, ast.TypeInteger, true},
		{ast.OpAdd, ast.TypeFloat, ast.TypeInteger, ast.TypeFloat, true},
		{ast.OpAdd, ast.TypeString, ast.TypeString, ast.TypeString, true},
		{ast.OpEq, ast.TypeString, ast.TypeString, ast.TypeBoolean, true},
		{ast.OpMul, ast.TypeString, ast.TypeString, ast.TypeNone, false},
		{ast.OpAdd, ast.TypeString, ast.TypeInteger, ast.TypeNone, false},
		{ast.OpShl, ast.TypeFloat, ast.TypeInteger, ast.TypeInteger, true},
		{ast.OpAdd, ast.TypeBoolean, ast.TypeBoolean, ast.TypeInteger, true},
		{ast.OpAnd, ast.TypeInteger, ast.TypeInteger, ast.TypeBoolean, true},
	}
	for _, tt := range tests {
		got, ok := BinaryResult(tt.op, tt.l, tt.r)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("%s(%s, %s): expected=(%s, %v), got=(%s, %v)", tt.op, tt.l, tt.r, tt.want, tt.ok, got, ok)
		}
	}
}

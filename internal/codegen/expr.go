package codegen

import (
	"errors"
	"log/slog"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/engine"
)

// genExpr lowers an expression into the current block.
func (g *Generator) genExpr(id ast.NodeID) (value.Value, error) {
	fc := g.fn
	switch n := g.tree.Node(id).(type) {
	case *ast.Literal:
		return g.genLiteral(n)

	case *ast.ConstRef:
		v, ok := g.info.Consts[key(n.Name)]
		if !ok {
			return nil, g.internalf("constant %s has no value", n.Name)
		}
		return g.genExpr(v)

	case *ast.VarRef, *ast.ArrayRef:
		ptr, elem, err := g.genLValue(id)
		if err != nil {
			return nil, err
		}
		return fc.cur.NewLoad(elem, ptr), nil

	case *ast.FuncCall:
		v, err := g.genCall(n)
		if err != nil {
			return nil, err
		}
		if v.Type().Equal(lltypes.Void) {
			return nil, g.internalf("function %s used as a value but returns nothing", n.Name)
		}
		return v, nil

	case *ast.Keyword:
		return g.genKeyword(id, n)

	case *ast.UnaryOp:
		return g.genUnary(n)

	case *ast.BinaryOp:
		return g.genBinary(n)
	}
	return nil, g.internalf("cannot lower %s as an expression", g.tree.Kind(id))
}

func (g *Generator) genLiteral(n *ast.Literal) (value.Value, error) {
	switch n.Type {
	case ast.TypeBoolean:
		return constant.NewBool(n.Bool), nil
	case ast.TypeInteger:
		return constant.NewInt(lltypes.I32, int64(n.Int)), nil
	case ast.TypeFloat:
		return constant.NewFloat(lltypes.Double, n.Float), nil
	case ast.TypeString:
		return g.stringConst(n.Str), nil
	}
	return nil, g.internalf("literal of type %s", n.Type)
}

// genLValue returns the address an assignable expression denotes and the
// type stored there.
func (g *Generator) genLValue(id ast.NodeID) (value.Value, lltypes.Type, error) {
	switch n := g.tree.Node(id).(type) {
	case *ast.VarRef:
		var v *variable
		typ, udt := n.Type, n.TypeName
		if len(n.Fields) > 0 {
			typ = ast.TypeUDT
		}
		if n.Scope == ast.ScopeGlobal {
			v = g.global(n.Name, typ, udt)
		} else {
			v = g.local(n.Name, typ, udt)
		}
		if len(n.Fields) == 0 {
			return v.ptr, v.elem, nil
		}
		return g.fieldAddr(v, n.Fields)

	case *ast.ArrayRef:
		return g.elementAddr(n)
	}
	return nil, nil, g.internalf("%s is not assignable", g.tree.Kind(id))
}

// fieldAddr walks a `.field` path from a UDT variable.
func (g *Generator) fieldAddr(v *variable, fields []string) (value.Value, lltypes.Type, error) {
	fc := g.fn
	ptr, elem, udtName := v.ptr, v.elem, v.udt
	zero := constant.NewInt(lltypes.I32, 0)
	for _, name := range fields {
		u, ok := g.info.UDT(udtName)
		if !ok {
			return nil, nil, g.internalf("unknown type %s", udtName)
		}
		i, f, ok := u.Field(name)
		if !ok {
			return nil, nil, g.internalf("type %s has no field %s", u.Name, name)
		}
		ptr = fc.cur.NewGetElementPtr(elem, ptr, zero, constant.NewInt(lltypes.I32, int64(i)))
		elem = g.irType(f.Type, f.TypeName)
		udtName = f.TypeName
	}
	return ptr, elem, nil
}

// elementAddr computes the row-major offset of an array element.
func (g *Generator) elementAddr(n *ast.ArrayRef) (value.Value, lltypes.Type, error) {
	fc := g.fn
	var v *variable
	if n.Scope == ast.ScopeGlobal {
		v = g.globalArrays[key(n.Name)]
	} else {
		v = fc.arrays[key(n.Name)]
	}
	if v == nil {
		return nil, nil, g.internalf("array %s referenced before its dim", n.Name)
	}
	args := g.tree.CommaList(n.Args)
	if len(args) != len(v.dims) {
		return nil, nil, g.internalf("array %s indexed with %d subscripts, has %d dimensions",
			n.Name, len(args), len(v.dims))
	}

	var offset value.Value
	for i, a := range args {
		idx, err := g.genExpr(a)
		if err != nil {
			return nil, nil, err
		}
		if idx, err = g.convert(fc.cur, idx, lltypes.I32); err != nil {
			return nil, nil, err
		}
		if offset == nil {
			offset = idx
			continue
		}
		stride := constant.NewInt(lltypes.I32, int64(v.dims[i])+1)
		offset = fc.cur.NewAdd(fc.cur.NewMul(offset, stride), idx)
	}
	ptr := fc.cur.NewGetElementPtr(v.array, v.ptr, constant.NewInt(lltypes.I32, 0), offset)
	return ptr, v.elem, nil
}

func (g *Generator) genUnary(n *ast.UnaryOp) (value.Value, error) {
	fc := g.fn
	v, err := g.genExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.OpNot:
		b, err := g.toBool(fc.cur, v)
		if err != nil {
			return nil, err
		}
		return fc.cur.NewXor(b, constant.True), nil

	case ast.OpBitNot:
		if v, err = g.convert(fc.cur, v, lltypes.I32); err != nil {
			return nil, err
		}
		return fc.cur.NewXor(v, constant.NewInt(lltypes.I32, -1)), nil

	case ast.OpNegate:
		if isBool(v.Type()) {
			if v, err = g.convert(fc.cur, v, lltypes.I32); err != nil {
				return nil, err
			}
		}
		switch t := v.Type().(type) {
		case *lltypes.IntType:
			return fc.cur.NewSub(constant.NewInt(t, 0), v), nil
		case *lltypes.FloatType:
			return fc.cur.NewFNeg(v), nil
		}
	}
	return nil, g.internalf("operator %s on %s", n.Op, v.Type())
}

var (
	intPreds = map[ast.Kind]enum.IPred{
		ast.OpLt: enum.IPredSLT,
		ast.OpLe: enum.IPredSLE,
		ast.OpGt: enum.IPredSGT,
		ast.OpGe: enum.IPredSGE,
		ast.OpEq: enum.IPredEQ,
		ast.OpNe: enum.IPredNE,
	}
	floatPreds = map[ast.Kind]enum.FPred{
		ast.OpLt: enum.FPredOLT,
		ast.OpLe: enum.FPredOLE,
		ast.OpGt: enum.FPredOGT,
		ast.OpGe: enum.FPredOGE,
		ast.OpEq: enum.FPredOEQ,
		ast.OpNe: enum.FPredONE,
	}
)

// genBinary dispatches on the operand types. Mismatched numeric operands
// are converted to the left operand's type.
func (g *Generator) genBinary(n *ast.BinaryOp) (value.Value, error) {
	fc := g.fn
	switch n.Op {
	case ast.OpComma, ast.OpInc, ast.OpDec:
		return nil, g.internalf("%s is not a value", n.Op)
	case ast.OpAnd, ast.OpOr, ast.OpXor:
		return g.genLogical(n)
	}

	l, err := g.genExpr(n.Left)
	if err != nil {
		return nil, err
	}
	r, err := g.genExpr(n.Right)
	if err != nil {
		return nil, err
	}

	if isString(l.Type()) || isString(r.Type()) {
		if !isString(l.Type()) || !isString(r.Type()) {
			return nil, g.internalf("operator %s between %s and %s", n.Op, l.Type(), r.Type())
		}
		if n.Op == ast.OpAdd {
			return g.engine.StringAdd(fc.cur, l, r), nil
		}
		if pred, ok := intPreds[n.Op]; ok {
			return g.engine.StringCompare(fc.cur, pred, l, r), nil
		}
		return nil, g.internalf("operator %s on strings", n.Op)
	}

	switch n.Op {
	case ast.OpShl, ast.OpShr, ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		return g.genBitwise(n.Op, l, r)
	case ast.OpPow:
		return g.genPow(l, r)
	}

	// booleans take part in arithmetic as 0 and 1
	if isBool(l.Type()) && !(n.Op.IsComparison() && isBool(r.Type())) {
		if l, err = g.convert(fc.cur, l, lltypes.I32); err != nil {
			return nil, err
		}
	}
	if r, err = g.convert(fc.cur, r, l.Type()); err != nil {
		return nil, err
	}

	if n.Op.IsComparison() {
		if isFloat(l.Type()) {
			return fc.cur.NewFCmp(floatPreds[n.Op], l, r), nil
		}
		return fc.cur.NewICmp(intPreds[n.Op], l, r), nil
	}

	if isFloat(l.Type()) {
		switch n.Op {
		case ast.OpAdd:
			return fc.cur.NewFAdd(l, r), nil
		case ast.OpSub:
			return fc.cur.NewFSub(l, r), nil
		case ast.OpMul:
			return fc.cur.NewFMul(l, r), nil
		case ast.OpDiv:
			return fc.cur.NewFDiv(l, r), nil
		case ast.OpMod:
			return fc.cur.NewFRem(l, r), nil
		}
	} else {
		switch n.Op {
		case ast.OpAdd:
			return fc.cur.NewAdd(l, r), nil
		case ast.OpSub:
			return fc.cur.NewSub(l, r), nil
		case ast.OpMul:
			return fc.cur.NewMul(l, r), nil
		case ast.OpDiv:
			return fc.cur.NewSDiv(l, r), nil
		case ast.OpMod:
			return fc.cur.NewSRem(l, r), nil
		}
	}
	return nil, g.internalf("operator %s on %s", n.Op, l.Type())
}

// genLogical evaluates both operands; the language does not short-circuit.
func (g *Generator) genLogical(n *ast.BinaryOp) (value.Value, error) {
	fc := g.fn
	var ops [2]value.Value
	for i, id := range []ast.NodeID{n.Left, n.Right} {
		v, err := g.genExpr(id)
		if err != nil {
			return nil, err
		}
		if ops[i], err = g.toBool(fc.cur, v); err != nil {
			return nil, err
		}
	}
	switch n.Op {
	case ast.OpAnd:
		return fc.cur.NewAnd(ops[0], ops[1]), nil
	case ast.OpOr:
		return fc.cur.NewOr(ops[0], ops[1]), nil
	}
	return fc.cur.NewXor(ops[0], ops[1]), nil
}

func (g *Generator) genBitwise(op ast.Kind, l, r value.Value) (value.Value, error) {
	fc := g.fn
	var err error
	if l, err = g.convert(fc.cur, l, lltypes.I32); err != nil {
		return nil, err
	}
	if r, err = g.convert(fc.cur, r, lltypes.I32); err != nil {
		return nil, err
	}
	switch op {
	case ast.OpShl:
		return fc.cur.NewShl(l, r), nil
	case ast.OpShr:
		return fc.cur.NewAShr(l, r), nil
	case ast.OpBitAnd:
		return fc.cur.NewAnd(l, r), nil
	case ast.OpBitOr:
		return fc.cur.NewOr(l, r), nil
	}
	return fc.cur.NewXor(l, r), nil
}

// genPow computes in double precision through llvm.pow and converts the
// result back to the left operand's type.
func (g *Generator) genPow(l, r value.Value) (value.Value, error) {
	fc := g.fn
	resultType := l.Type()
	if isBool(resultType) {
		resultType = lltypes.I32
	}
	x, err := g.convert(fc.cur, l, lltypes.Double)
	if err != nil {
		return nil, err
	}
	y, err := g.convert(fc.cur, r, lltypes.Double)
	if err != nil {
		return nil, err
	}
	pow := g.intrinsic("llvm.pow.f64", lltypes.Double, lltypes.Double, lltypes.Double)
	return g.convert(fc.cur, fc.cur.NewCall(pow, x, y), resultType)
}

// intrinsic declares an LLVM intrinsic once per module.
func (g *Generator) intrinsic(name string, ret lltypes.Type, params ...lltypes.Type) *ir.Func {
	if f, ok := g.intrinsics[name]; ok {
		return f
	}
	ps := make([]*ir.Param, len(params))
	for i, t := range params {
		ps[i] = ir.NewParam("", t)
	}
	f := g.m.NewFunc(name, ret, ps...)
	g.intrinsics[name] = f
	return f
}

// genCall calls a user function, converting each argument to the declared
// parameter type.
func (g *Generator) genCall(n *ast.FuncCall) (value.Value, error) {
	fc := g.fn
	f, ok := g.funcs[key(n.Name)]
	if !ok {
		return nil, g.internalf("call to undeclared function %s", n.Name)
	}
	args := g.tree.CommaList(n.Args)
	if len(args) != len(f.Params) {
		return nil, g.internalf("%s called with %d arguments, takes %d", n.Name, len(args), len(f.Params))
	}
	vals := make([]value.Value, len(args))
	for i, a := range args {
		v, err := g.genExpr(a)
		if err != nil {
			return nil, err
		}
		if vals[i], err = g.convert(fc.cur, v, f.Params[i].Typ); err != nil {
			return nil, err
		}
	}
	return fc.cur.NewCall(f, vals...), nil
}

// genKeyword calls the thunk of the overload matching the argument count.
// Problems with the keyword database are reported as diagnostics and the
// call is replaced by the zero value of its type so generation can go on.
func (g *Generator) genKeyword(id ast.NodeID, n *ast.Keyword) (value.Value, error) {
	fc := g.fn
	resultType := g.irType(n.Type, "")
	placeholder := func() (value.Value, error) {
		if resultType.Equal(lltypes.Void) {
			return constant.NewInt(lltypes.I32, 0), nil
		}
		return g.zero(resultType), nil
	}

	if g.opts.Keywords == nil {
		g.reportError(diag.StageCodegen, diag.CodeGenUnboundKeyword, id,
			"load a keyword database with --keywords", "command %s has no keyword database", n.Name)
		return placeholder()
	}
	kw, ok := g.opts.Keywords.Lookup(n.Name)
	if !ok {
		return nil, g.internalf("command %s is not in the keyword database", n.Name)
	}
	args := g.tree.CommaList(n.Args)
	o, ok := kw.OverloadForArity(len(args))
	if !ok {
		g.reportError(diag.StageCodegen, diag.CodeGenNoMatchingOverload, id,
			"it accepts "+kw.Arities()+" arguments",
			"command %s has no overload taking %d arguments", kw.Name, len(args))
		return placeholder()
	}
	thunk, err := g.engine.CommandThunk(kw, o)
	if err != nil {
		help := ""
		if errors.Is(err, engine.ErrUnboundCommand) {
			help = "keyword spec files only describe commands; load the plugin that exports it"
		}
		g.reportError(diag.StageCodegen, diag.CodeGenUnboundKeyword, id, help, "%v", err)
		return placeholder()
	}
	plugin := engine.PluginFromPath(o.Plugin)
	if _, seen := g.plugins[key(plugin.Name)]; !seen {
		g.plugins[key(plugin.Name)] = plugin
		g.logger.Debug("plugin referenced", slog.String("plugin", plugin.Name), slog.String("command", kw.Name))
	}

	vals := make([]value.Value, len(args))
	for i, a := range args {
		v, err := g.genExpr(a)
		if err != nil {
			return nil, err
		}
		if vals[i], err = g.convert(fc.cur, v, thunk.Params[i].Typ); err != nil {
			return nil, err
		}
	}
	res := fc.cur.NewCall(thunk, vals...)
	if resultType.Equal(lltypes.Void) || res.Type().Equal(lltypes.Void) {
		return res, nil
	}
	return g.convert(fc.cur, res, resultType)
}

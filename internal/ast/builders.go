package ast

import (
	"fmt"

	"github.com/odb-lang/odb-compiler/internal/lexer"
)

// Builders panic on programmer error. The parser only calls them with nodes
// it has already classified, so a violated precondition is a bug, not a
// user-facing problem.

func (t *Tree) expectExpr(what string, id NodeID) {
	t.mustExist(id)
	if !t.IsExpr(id) {
		panic(fmt.Sprintf("ast: %s must be an expression, got %s", what, t.Kind(id)))
	}
}

func (t *Tree) expectOptExpr(what string, id NodeID) {
	if id != NoNode {
		t.expectExpr(what, id)
	}
}

func (t *Tree) expectKind(what string, id NodeID, kinds ...Kind) {
	t.mustExist(id)
	k := t.Kind(id)
	for _, want := range kinds {
		if k == want {
			return
		}
	}
	panic(fmt.Sprintf("ast: %s must be one of %v, got %s", what, kinds, k))
}

func (t *Tree) expectOptKind(what string, id NodeID, kinds ...Kind) {
	if id != NoNode {
		t.expectKind(what, id, kinds...)
	}
}

func (t *Tree) expectLValue(what string, id NodeID) {
	t.expectKind(what, id, KindVarRef, KindArrayRef)
}

func expectName(sym Sym) {
	if sym.Name == "" {
		panic("ast: symbol without a name")
	}
}

// link creates n and adopts every non-empty child slot.
func (t *Tree) link(n Node, span lexer.Span) NodeID {
	id := t.add(n, span)
	for _, ref := range childRefs(n) {
		t.adopt(id, *ref)
	}
	return id
}

// NewBlock builds a statement sequence.
func (t *Tree) NewBlock(stmts []NodeID, span lexer.Span) NodeID {
	for _, s := range stmts {
		t.mustExist(s)
	}
	return t.link(&Block{Stmts: append([]NodeID(nil), stmts...)}, span)
}

// AppendStmt adds stmt to the end of block.
func (t *Tree) AppendStmt(block, stmt NodeID) {
	b, ok := t.Node(block).(*Block)
	if !ok {
		panic(fmt.Sprintf("ast: AppendStmt target must be Block, got %s", t.Kind(block)))
	}
	t.mustExist(stmt)
	t.adopt(block, stmt)
	b.Stmts = append(b.Stmts, stmt)
}

func (t *Tree) NewAssignment(target, value NodeID, span lexer.Span) NodeID {
	t.expectLValue("assignment target", target)
	t.expectExpr("assigned value", value)
	return t.link(&Assignment{Target: target, Value: value}, span)
}

// NewBranch builds an if statement. then and els are Blocks (or a nested
// Branch for elseif chains in the else slot) and may be NoNode.
func (t *Tree) NewBranch(cond, then, els NodeID, span lexer.Span) NodeID {
	t.expectExpr("branch condition", cond)
	t.expectOptKind("then arm", then, KindBlock)
	t.expectOptKind("else arm", els, KindBlock, KindBranch)
	paths := t.link(&BranchPaths{Then: then, Else: els}, span)
	return t.link(&Branch{Cond: cond, Paths: paths}, span)
}

// NewSelect builds a select statement from Case nodes and an optional
// default Block.
func (t *Tree) NewSelect(expr NodeID, cases []NodeID, def NodeID, span lexer.Span) NodeID {
	t.expectExpr("select expression", expr)
	for _, c := range cases {
		t.expectKind("select arm", c, KindCase)
	}
	t.expectOptKind("case default", def, KindBlock)
	list := t.link(&CaseList{Cases: append([]NodeID(nil), cases...), Default: def}, span)
	return t.link(&Select{Expr: expr, Cases: list}, span)
}

// NewCase builds one arm. values is an expression or comma tree.
func (t *Tree) NewCase(values, body NodeID, span lexer.Span) NodeID {
	t.expectExpr("case value", values)
	t.expectOptKind("case body", body, KindBlock)
	return t.link(&Case{Values: values, Body: body}, span)
}

func (t *Tree) NewFuncReturn(value NodeID, span lexer.Span) NodeID {
	t.expectOptExpr("return value", value)
	return t.link(&FuncReturn{Value: value}, span)
}

func (t *Tree) NewSubReturn(span lexer.Span) NodeID {
	return t.add(&SubReturn{}, span)
}

func (t *Tree) NewGoto(label string, span lexer.Span) NodeID {
	if label == "" {
		panic("ast: goto without a label")
	}
	return t.add(&Goto{Label: label}, span)
}

func (t *Tree) NewLoop(body NodeID, span lexer.Span) NodeID {
	t.expectOptKind("loop body", body, KindBlock)
	return t.link(&Loop{Body: body}, span)
}

func (t *Tree) NewLoopWhile(cond, body NodeID, span lexer.Span) NodeID {
	t.expectExpr("while condition", cond)
	t.expectOptKind("while body", body, KindBlock)
	return t.link(&LoopWhile{Cond: cond, Body: body}, span)
}

func (t *Tree) NewLoopUntil(cond, body NodeID, span lexer.Span) NodeID {
	t.expectExpr("until condition", cond)
	t.expectOptKind("repeat body", body, KindBlock)
	return t.link(&LoopUntil{Cond: cond, Body: body}, span)
}

func (t *Tree) NewBreak(span lexer.Span) NodeID {
	return t.add(&Break{}, span)
}

func (t *Tree) NewUDTFieldList(fields []NodeID, span lexer.Span) NodeID {
	for _, f := range fields {
		t.expectKind("type field", f, KindVarDecl, KindArrayDecl)
	}
	return t.link(&UDTFieldList{Fields: append([]NodeID(nil), fields...)}, span)
}

// NewBinaryOp builds any two-operand operator including comma. Comma
// operands may themselves be non-expressions only when they are nested
// comma trees, which IsExpr already accepts.
func (t *Tree) NewBinaryOp(op Kind, left, right NodeID, span lexer.Span) NodeID {
	if !op.IsBinaryOp() {
		panic(fmt.Sprintf("ast: %s is not a binary operator", op))
	}
	switch op {
	case OpInc, OpDec:
		t.expectLValue(op.String()+" target", left)
	default:
		t.expectExpr(op.String()+" left operand", left)
	}
	t.expectExpr(op.String()+" right operand", right)
	return t.link(&BinaryOp{Op: op, Left: left, Right: right}, span)
}

// NewCommaList folds items into a right-associated comma tree. A single
// item is returned as is and an empty list yields NoNode.
func (t *Tree) NewCommaList(items []NodeID, span lexer.Span) NodeID {
	if len(items) == 0 {
		return NoNode
	}
	acc := items[len(items)-1]
	for i := len(items) - 2; i >= 0; i-- {
		s := t.Span(items[i])
		s.End = t.Span(acc).End
		acc = t.NewBinaryOp(OpComma, items[i], acc, s)
	}
	if len(items) > 1 {
		t.SetSpan(acc, span)
	}
	return acc
}

func (t *Tree) NewUnaryOp(op Kind, operand NodeID, span lexer.Span) NodeID {
	if !op.IsUnaryOp() {
		panic(fmt.Sprintf("ast: %s is not a unary operator", op))
	}
	t.expectExpr(op.String()+" operand", operand)
	return t.link(&UnaryOp{Op: op, Operand: operand}, span)
}

// NewInc builds `inc target, amount`. A missing amount means 1.
func (t *Tree) NewInc(target, amount NodeID, span lexer.Span) NodeID {
	if amount == NoNode {
		amount = t.NewIntLiteral(1, span)
	}
	return t.NewBinaryOp(OpInc, target, amount, span)
}

// NewDec builds `dec target, amount`. A missing amount means 1.
func (t *Tree) NewDec(target, amount NodeID, span lexer.Span) NodeID {
	if amount == NoNode {
		amount = t.NewIntLiteral(1, span)
	}
	return t.NewBinaryOp(OpDec, target, amount, span)
}

func (t *Tree) NewBoolLiteral(v bool, span lexer.Span) NodeID {
	return t.add(&Literal{Type: TypeBoolean, Bool: v}, span)
}

func (t *Tree) NewIntLiteral(v int32, span lexer.Span) NodeID {
	return t.add(&Literal{Type: TypeInteger, Int: v}, span)
}

func (t *Tree) NewFloatLiteral(v float64, span lexer.Span) NodeID {
	return t.add(&Literal{Type: TypeFloat, Float: v}, span)
}

func (t *Tree) NewStringLiteral(v string, span lexer.Span) NodeID {
	return t.add(&Literal{Type: TypeString, Str: v}, span)
}

func (t *Tree) NewSymbol(sym Sym, span lexer.Span) NodeID {
	expectName(sym)
	return t.add(&Symbol{Sym: sym}, span)
}

func (t *Tree) NewConstDecl(sym Sym, value NodeID, span lexer.Span) NodeID {
	expectName(sym)
	t.expectExpr("constant value", value)
	return t.link(&ConstDecl{Sym: sym, Value: value}, span)
}

func (t *Tree) NewConstRef(sym Sym, span lexer.Span) NodeID {
	expectName(sym)
	return t.add(&ConstRef{Sym: sym}, span)
}

// NewVarDecl declares a variable. udt must be a UDTRef when sym.Type is
// TypeUDT and NoNode otherwise.
func (t *Tree) NewVarDecl(sym Sym, init, udt NodeID, span lexer.Span) NodeID {
	expectName(sym)
	t.expectOptExpr("initialiser", init)
	if sym.Type == TypeUDT {
		t.expectKind("variable type", udt, KindUDTRef)
	} else if udt != NoNode {
		panic(fmt.Sprintf("ast: variable %q of type %s given a UDT reference", sym.Name, sym.Type))
	}
	return t.link(&VarDecl{Sym: sym, Init: init, UDT: udt}, span)
}

func (t *Tree) NewVarRef(sym Sym, fields []string, span lexer.Span) NodeID {
	expectName(sym)
	return t.add(&VarRef{Sym: sym, Fields: append([]string(nil), fields...)}, span)
}

func (t *Tree) NewArrayDecl(sym Sym, dims NodeID, span lexer.Span) NodeID {
	expectName(sym)
	t.expectExpr("array dimensions", dims)
	return t.link(&ArrayDecl{Sym: sym, Dims: dims}, span)
}

func (t *Tree) NewArrayRef(sym Sym, args NodeID, span lexer.Span) NodeID {
	expectName(sym)
	t.expectExpr("array index", args)
	return t.link(&ArrayRef{Sym: sym, Args: args}, span)
}

func (t *Tree) NewUDTDecl(sym Sym, fields NodeID, span lexer.Span) NodeID {
	expectName(sym)
	t.expectKind("type fields", fields, KindUDTFieldList)
	return t.link(&UDTDecl{Sym: sym, Fields: fields}, span)
}

func (t *Tree) NewUDTRef(sym Sym, span lexer.Span) NodeID {
	expectName(sym)
	return t.add(&UDTRef{Sym: sym}, span)
}

func (t *Tree) NewFuncCall(sym Sym, args NodeID, span lexer.Span) NodeID {
	expectName(sym)
	t.expectOptExpr("call arguments", args)
	return t.link(&FuncCall{Sym: sym, Args: args}, span)
}

// NewFuncDecl defines a function. params are VarDecl nodes, ret is the
// value after endfunction and may be NoNode.
func (t *Tree) NewFuncDecl(sym Sym, params []NodeID, body, ret NodeID, span lexer.Span) NodeID {
	expectName(sym)
	for _, p := range params {
		t.expectKind("parameter", p, KindVarDecl)
	}
	t.expectOptKind("function body", body, KindBlock)
	t.expectOptExpr("function result", ret)
	n := &FuncDecl{Sym: sym, Params: append([]NodeID(nil), params...), Body: body, Return: ret}
	return t.link(n, span)
}

func (t *Tree) NewSubCall(sym Sym, span lexer.Span) NodeID {
	expectName(sym)
	return t.add(&SubCall{Sym: sym}, span)
}

func (t *Tree) NewLabel(sym Sym, span lexer.Span) NodeID {
	expectName(sym)
	return t.add(&Label{Sym: sym}, span)
}

// NewKeyword invokes a command. sym.Type is TypeNone for statement use.
func (t *Tree) NewKeyword(sym Sym, args NodeID, span lexer.Span) NodeID {
	expectName(sym)
	t.expectOptExpr("command arguments", args)
	return t.link(&Keyword{Sym: sym, Args: args}, span)
}

// NewFor lowers `for v = start to end step s ... next` into
//
//	Block [ v = start, LoopWhile(v <= end) { body..., v = v + s } ]
//
// A positive literal step compares with <= and a negative one with >=. Any
// other step is tested on every iteration:
//
//	(s > 0 and v <= end) or (s < 0 and v >= end)
//
// so a zero step ends the loop. A missing step means 1. Every use of v and
// s is a fresh copy. body must be a Block and is extended in place.
func (t *Tree) NewFor(v, start, end, step, body NodeID, span lexer.Span) NodeID {
	t.expectKind("for variable", v, KindVarRef)
	t.expectExpr("for start", start)
	t.expectExpr("for end", end)
	t.expectOptExpr("for step", step)
	t.expectKind("for body", body, KindBlock)
	if t.nodes[body].parent != NoNode {
		panic("ast: for body already owned")
	}

	vspan := t.Span(v)
	if step == NoNode {
		step = t.NewIntLiteral(1, vspan)
	}
	var cond NodeID
	switch t.literalSign(step) {
	case 1:
		cond = t.NewBinaryOp(OpLe, t.Clone(v), end, t.Span(end))
	case -1:
		cond = t.NewBinaryOp(OpGe, t.Clone(v), end, t.Span(end))
	default:
		cond = t.newStepCond(v, end, step)
	}

	sum := t.NewBinaryOp(OpAdd, t.Clone(v), step, t.Span(step))
	t.AppendStmt(body, t.NewAssignment(t.Clone(v), sum, t.Span(step)))

	loop := t.NewLoopWhile(cond, body, span)
	init := t.NewAssignment(v, start, t.Span(start))
	return t.NewBlock([]NodeID{init, loop}, span)
}

// newStepCond builds the for condition for a step whose sign is only known
// at run time. end is used once and cloned for the second comparison.
func (t *Tree) newStepCond(v, end, step NodeID) NodeID {
	sspan, espan := t.Span(step), t.Span(end)
	side := func(sign, cmp Kind, end NodeID) NodeID {
		zero := t.NewIntLiteral(0, sspan)
		return t.NewBinaryOp(OpAnd,
			t.NewBinaryOp(sign, t.Clone(step), zero, sspan),
			t.NewBinaryOp(cmp, t.Clone(v), end, espan), espan)
	}
	up := side(OpGt, OpLe, t.Clone(end))
	down := side(OpLt, OpGe, end)
	return t.NewBinaryOp(OpOr, up, down, espan)
}

// literalSign returns 1 or -1 for a nonzero numeric literal step, possibly
// negated, and 0 for anything else.
func (t *Tree) literalSign(id NodeID) int {
	sign := 1
	if u, ok := t.Node(id).(*UnaryOp); ok && u.Op == OpNegate {
		sign, id = -1, u.Operand
	}
	lit, ok := t.Node(id).(*Literal)
	if !ok {
		return 0
	}
	switch {
	case lit.Type == TypeInteger && lit.Int > 0, lit.Type == TypeFloat && lit.Float > 0:
		return sign
	case lit.Type == TypeInteger && lit.Int < 0, lit.Type == TypeFloat && lit.Float < 0:
		return -sign
	}
	return 0
}

package types

import (
	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
	"github.com/odb-lang/odb-compiler/internal/keywords"
)

// checkExpr checks an expression and returns its type. TypeNone means an
// error was already reported.
func (c *Checker) checkExpr(id ast.NodeID) ast.DataType {
	switch n := c.tree.Node(id).(type) {
	case *ast.Literal:
		return n.Type

	case *ast.ConstRef:
		if v, ok := c.info.Consts[key(n.Name)]; ok {
			if lit, ok := c.tree.Node(v).(*ast.Literal); ok && !ast.HasSuffix(n.Name) {
				n.Type = lit.Type
			}
		}
		return n.Type

	case *ast.VarRef:
		return c.checkVarRef(id, n)

	case *ast.ArrayRef:
		return c.checkArrayRef(id, n)

	case *ast.FuncCall:
		return c.checkCall(id, n, true)

	case *ast.Keyword:
		return c.checkKeyword(id, n, true)

	case *ast.UnaryOp:
		t := c.checkExpr(n.Operand)
		if t == ast.TypeNone {
			return t
		}
		if !IsNumeric(t) {
			c.reportError(diag.CodeTypeInvalidOperation, id, "operator %s does not apply to %s", n.Op, t)
			return ast.TypeNone
		}
		switch n.Op {
		case ast.OpNot:
			return ast.TypeBoolean
		case ast.OpBitNot:
			return ast.TypeInteger
		}
		if t == ast.TypeBoolean {
			return ast.TypeInteger
		}
		return t

	case *ast.BinaryOp:
		return c.checkBinary(id, n)
	}

	c.reportError(diag.CodeTypeStatementAsValue, id, "%s does not produce a value", c.tree.Kind(id))
	return ast.TypeNone
}

func (c *Checker) checkBinary(id ast.NodeID, n *ast.BinaryOp) ast.DataType {
	if n.Op == ast.OpComma {
		c.reportError(diag.CodeTypeInvalidOperation, id, "a list is not a value")
		return ast.TypeNone
	}
	l := c.checkExpr(n.Left)
	r := c.checkExpr(n.Right)
	if l == ast.TypeNone || r == ast.TypeNone {
		return ast.TypeNone
	}
	t, ok := BinaryResult(n.Op, l, r)
	if !ok {
		c.reportError(diag.CodeTypeInvalidOperation, id, "operator %s does not apply to %s and %s", n.Op, l, r)
		return ast.TypeNone
	}
	return t
}

// BinaryResult gives the type of `l op r`. Mixed numeric operands convert
// to the left operand's type.
func BinaryResult(op ast.Kind, l, r ast.DataType) (ast.DataType, bool) {
	if l == ast.TypeString || r == ast.TypeString {
		switch {
		case l != r:
			return ast.TypeNone, false
		case op == ast.OpAdd:
			return ast.TypeString, true
		case op.IsComparison():
			return ast.TypeBoolean, true
		}
		return ast.TypeNone, false
	}
	if !IsNumeric(l) || !IsNumeric(r) {
		return ast.TypeNone, false
	}
	switch op {
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpEq, ast.OpNe, ast.OpAnd, ast.OpOr, ast.OpXor:
		return ast.TypeBoolean, true
	case ast.OpShl, ast.OpShr, ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		return ast.TypeInteger, true
	}
	if l == ast.TypeBoolean {
		return ast.TypeInteger, true
	}
	return l, true
}

func comparable(a, b ast.DataType) bool {
	_, ok := BinaryResult(ast.OpEq, a, b)
	return ok
}

// checkLValue checks an assignment target. A variable assigned before any
// declaration is declared implicitly with its provisional type.
func (c *Checker) checkLValue(id ast.NodeID) ast.DataType {
	switch n := c.tree.Node(id).(type) {
	case *ast.VarRef:
		return c.checkVarRef(id, n)
	case *ast.ArrayRef:
		return c.checkArrayRef(id, n)
	}
	c.reportError(diag.CodeTypeInvalidOperation, id, "cannot assign to %s", c.tree.Kind(id))
	return ast.TypeNone
}

func (c *Checker) checkVarRef(id ast.NodeID, n *ast.VarRef) ast.DataType {
	sym := c.scope.LookupVar(n.Name)
	if sym == nil {
		if len(n.Fields) > 0 {
			c.reportErrorWithHelp(diag.CodeTypeUnknownField, id,
				"declare it with `local "+n.Name+" as <type>` first",
				"%s has no declared type, so it has no fields", n.Name)
			return ast.TypeNone
		}
		c.scope.Vars[key(n.Name)] = &Symbol{
			Name:  n.Name,
			Type:  n.Type,
			Scope: ast.ScopeLocal,
			Span:  c.tree.Span(id),
			refs:  []ast.NodeID{id},
		}
		n.Scope = ast.ScopeLocal
		return n.Type
	}
	if sym.Decl == ast.NoNode {
		sym.refs = append(sym.refs, id)
		if len(n.Fields) > 0 {
			c.reportError(diag.CodeTypeUnknownField, id, "%s has no declared type, so it has no fields", n.Name)
			return ast.TypeNone
		}
		return n.Type
	}
	before := len(c.Errors)
	c.reconcile(id, sym)
	if len(c.Errors) > before {
		return ast.TypeNone
	}
	return n.Type
}

func (c *Checker) checkArrayRef(id ast.NodeID, n *ast.ArrayRef) ast.DataType {
	args := c.tree.CommaList(n.Args)
	for _, a := range args {
		if t := c.checkExpr(a); t != ast.TypeNone && !IsNumeric(t) {
			c.reportError(diag.CodeTypeInvalidOperation, a, "array index must be numeric, not %s", t)
		}
	}
	sym := c.scope.LookupArray(n.Name)
	if sym == nil {
		c.reportError(diag.CodeParseUndeclaredArray, id, "array %s is not declared in this scope", n.Name)
		return ast.TypeNone
	}
	decl := c.tree.Node(sym.Decl).(*ast.ArrayDecl)
	if want := len(c.tree.CommaList(decl.Dims)); want != len(args) {
		c.reportConflict(diag.CodeTypeArgumentCount, id, "", sym.Span, "declared here",
			"array %s has %d dimensions but %d indices were given", n.Name, want, len(args))
		return ast.TypeNone
	}
	c.checkBounds(n.Name, args, sym)
	n.Type, n.TypeName, n.Scope = sym.Type, sym.TypeName, sym.Scope
	return n.Type
}

// checkBounds reports constant subscripts outside the declared bounds.
// Subscripts known only at run time are not checked.
func (c *Checker) checkBounds(name string, args []ast.NodeID, sym *Symbol) {
	bounds, ok := c.info.Dims[sym.Decl]
	if !ok || len(bounds) != len(args) {
		return
	}
	for i, a := range args {
		v, ok := c.evalConst(a)
		if !ok || (v >= 0 && v <= bounds[i]) {
			continue
		}
		c.reportConflict(diag.CodeTypeIndexOutOfRange, a, "", sym.Span, "declared here",
			"index %d is out of range for dimension %d of array %s (0 to %d)", v, i+1, name, bounds[i])
	}
}

// checkCall checks a user-function call. asValue is set when the result is
// used.
func (c *Checker) checkCall(id ast.NodeID, n *ast.FuncCall, asValue bool) ast.DataType {
	args := c.tree.CommaList(n.Args)
	for _, a := range args {
		c.checkExpr(a)
	}

	f, ok := c.info.Function(n.Name)
	if !ok {
		c.reportErrorWithHelp(diag.CodeTypeUndefinedFunction, id,
			"define it with `function`, or `dim` it first if it is an array",
			"undefined function %s", n.Name)
		return ast.TypeNone
	}
	if f.state == unchecked {
		c.checkFunction(c.tree.Node(f.Decl).(*ast.FuncDecl))
	}
	if len(args) != len(f.Params) {
		c.reportConflict(diag.CodeTypeArgumentCount, id, "", c.tree.Span(f.Decl), "defined here",
			"function %s takes %d arguments but %d were given", f.Name, len(f.Params), len(args))
		return ast.TypeNone
	}
	for i, a := range args {
		if at := c.exprType(a); at != ast.TypeNone && !Assignable(f.Params[i].Type, at) {
			c.reportError(diag.CodeTypeInvalidOperation, a, "argument %d of %s must be %s, not %s",
				i+1, f.Name, f.Params[i].Type, at)
		}
	}

	n.Type = f.Return
	if asValue && f.Return == ast.TypeNone {
		c.reportError(diag.CodeTypeStatementAsValue, id, "function %s does not return a value", f.Name)
		return ast.TypeNone
	}
	return n.Type
}

// exprType reads the type an already checked expression settled on.
func (c *Checker) exprType(id ast.NodeID) ast.DataType {
	switch n := c.tree.Node(id).(type) {
	case *ast.Literal:
		return n.Type
	case *ast.UnaryOp:
		t := c.exprType(n.Operand)
		switch {
		case n.Op == ast.OpNot:
			return ast.TypeBoolean
		case n.Op == ast.OpBitNot, t == ast.TypeBoolean:
			return ast.TypeInteger
		}
		return t
	case *ast.BinaryOp:
		t, _ := BinaryResult(n.Op, c.exprType(n.Left), c.exprType(n.Right))
		return t
	}
	if sym := c.tree.SymOf(id); sym != nil {
		return sym.Type
	}
	return ast.TypeNone
}

// checkKeyword checks a command invocation against the keyword database.
func (c *Checker) checkKeyword(id ast.NodeID, n *ast.Keyword, asValue bool) ast.DataType {
	args := c.tree.CommaList(n.Args)
	argTypes := make([]ast.DataType, len(args))
	for i, a := range args {
		argTypes[i] = c.checkExpr(a)
	}
	if key(n.Name) == "end" || c.keywords == nil {
		return n.Type
	}

	kw, ok := c.keywords.Lookup(n.Name)
	if !ok {
		c.reportError(diag.CodeTypeUnknownKeyword, id, "unknown command %s", n.Name)
		return ast.TypeNone
	}
	o, ok := kw.OverloadForArity(len(args))
	if !ok {
		c.reportErrorWithHelp(diag.CodeTypeArgumentCount, id, "it accepts "+kw.Arities()+" arguments",
			"command %s does not take %d arguments", kw.Name, len(args))
		return ast.TypeNone
	}
	for i, a := range o.Args {
		want := ast.FromKeywordType(a.Type)
		if a.Type == keywords.TypeUnknown || want == ast.TypeNone || argTypes[i] == ast.TypeNone {
			continue
		}
		if !Assignable(want, argTypes[i]) {
			c.reportError(diag.CodeTypeInvalidOperation, args[i], "argument %d of %s must be %s, not %s",
				i+1, kw.Name, want, argTypes[i])
		}
	}
	if asValue && !kw.HasReturn() {
		c.reportError(diag.CodeTypeStatementAsValue, id, "command %s does not return a value", kw.Name)
		return ast.TypeNone
	}
	return n.Type
}

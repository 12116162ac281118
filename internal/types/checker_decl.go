package types

import (
	"strings"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
)

// collectDecls records functions, types, constants and globals before any
// body is checked, so their use may precede their definition.
func (c *Checker) collectDecls(prog *ast.Program) {
	for _, id := range prog.Functions() {
		fd := c.tree.Node(id).(*ast.FuncDecl)
		if prev, ok := c.info.Function(fd.Name); ok {
			c.reportConflict(diag.CodeTypeDuplicateFunction, id, "redefined here",
				c.tree.Span(prev.Decl), "first defined here",
				"function %s is defined more than once", fd.Name)
			continue
		}
		f := &Function{Name: fd.Name, Decl: id, Return: fd.Sym.Type}
		for _, p := range fd.Params {
			f.Params = append(f.Params, *c.tree.SymOf(p))
		}
		c.info.Functions[key(fd.Name)] = f
	}

	for _, stmt := range prog.MainStmts() {
		c.tree.Walk(stmt, func(id ast.NodeID) bool {
			switch n := c.tree.Node(id).(type) {
			case *ast.UDTDecl:
				c.collectUDT(id, n)
				return false
			case *ast.ConstDecl:
				c.info.Consts[key(n.Name)] = n.Value
			case *ast.VarDecl:
				if n.Scope == ast.ScopeGlobal {
					c.declareVar(c.GlobalScope, id, n)
				}
			case *ast.ArrayDecl:
				if n.Scope == ast.ScopeGlobal {
					c.declareArray(c.GlobalScope, id, n)
				}
			}
			return true
		})
	}
}

func (c *Checker) collectUDT(id ast.NodeID, n *ast.UDTDecl) {
	if prev, ok := c.info.UDT(n.Name); ok {
		c.reportConflict(diag.CodeTypeDuplicateDecl, id, "redeclared here",
			c.tree.Span(prev.Decl), "first declared here",
			"type %s is declared more than once", n.Name)
		return
	}
	u := &UDT{Name: n.Name, Decl: id}
	for _, f := range c.tree.Node(n.Fields).(*ast.UDTFieldList).Fields {
		sym := c.tree.SymOf(f)
		if sym.Type == ast.TypeUDT {
			if _, ok := c.info.UDT(sym.TypeName); !ok {
				c.reportError(diag.CodeTypeUnknownUDT, f, "field %s has unknown type %s", sym.Name, sym.TypeName)
			}
		}
		u.Fields = append(u.Fields, Field{Name: sym.Name, Type: sym.Type, TypeName: sym.TypeName})
	}
	c.info.UDTs[key(n.Name)] = u
}

// collectLabels records the labels of one body. Labels are local to the
// main program or to the function that contains them.
func (c *Checker) collectLabels(stmts []ast.NodeID) {
	for _, stmt := range stmts {
		c.tree.Walk(stmt, func(id ast.NodeID) bool {
			l, ok := c.tree.Node(id).(*ast.Label)
			if !ok {
				return true
			}
			if prev, dup := c.scope.Labels[key(l.Name)]; dup {
				c.reportConflict(diag.CodeTypeDuplicateLabel, id, "redefined here",
					c.tree.Span(prev), "first defined here", "label %s is defined more than once", l.Name)
				return false
			}
			c.scope.Labels[key(l.Name)] = id
			return false
		})
	}
}

// checkFunction checks one body and settles its return type. A function
// reached again while it is being checked (recursion) keeps its provisional
// return type.
func (c *Checker) checkFunction(fd *ast.FuncDecl) {
	f, ok := c.info.Function(fd.Name)
	if !ok || f.state != unchecked {
		return
	}
	f.state = checking

	savedScope, savedFn := c.scope, c.fn
	c.scope, c.fn = NewScope(c.GlobalScope), f
	defer func() { c.scope, c.fn = savedScope, savedFn }()

	for _, p := range fd.Params {
		c.checkStmt(p)
	}
	body := c.tree.Node(fd.Body).(*ast.Block)
	c.collectLabels(body.Stmts)
	c.checkStmt(fd.Body)

	if fd.Return != ast.NoNode {
		f.exits = append(f.exits, exitValue{fd.Return, c.checkExpr(fd.Return)})
	}

	if !ast.HasSuffix(fd.Name) && len(f.exits) > 0 {
		f.Return = f.exits[len(f.exits)-1].typ
		if f.Return == ast.TypeBoolean {
			f.Return = ast.TypeInteger
		}
	}
	for _, e := range f.exits {
		if !Assignable(f.Return, e.typ) {
			c.reportConflict(diag.CodeTypeConflict, e.id, "returns "+e.typ.String(),
				c.tree.Span(f.Decl), "function declared here",
				"function %s returns %s but this value is %s", f.Name, f.Return, e.typ)
		}
	}

	fd.Sym.Type = f.Return
	f.state = checked
}

// declareVar binds a VarDecl in target. References that appeared before the
// declaration are reconciled with it.
func (c *Checker) declareVar(target *Scope, id ast.NodeID, n *ast.VarDecl) {
	k := key(n.Name)
	if sym, ok := target.Vars[k]; ok {
		if sym.Decl == id {
			return
		}
		if sym.Decl != ast.NoNode {
			c.reportConflict(diag.CodeTypeDuplicateDecl, id, "redeclared here",
				sym.Span, "first declared here", "variable %s is declared more than once", n.Name)
			return
		}
		sym.Type, sym.TypeName, sym.Scope = n.Type, n.TypeName, n.Scope
		sym.Decl, sym.Span = id, c.tree.Span(id)
		for _, ref := range sym.refs {
			c.reconcile(ref, sym)
		}
		sym.refs = nil
		return
	}
	target.Vars[k] = &Symbol{
		Name:     n.Name,
		Type:     n.Type,
		TypeName: n.TypeName,
		Scope:    n.Scope,
		Decl:     id,
		Span:     c.tree.Span(id),
	}
}

func (c *Checker) declareArray(target *Scope, id ast.NodeID, n *ast.ArrayDecl) {
	k := key(n.Name)
	if sym, ok := target.Arrays[k]; ok {
		if sym.Decl != id {
			c.reportConflict(diag.CodeTypeDuplicateDecl, id, "redeclared here",
				sym.Span, "first declared here", "array %s is declared more than once", n.Name)
		}
		return
	}
	target.Arrays[k] = &Symbol{
		Name:     n.Name,
		Type:     n.Type,
		TypeName: n.TypeName,
		Scope:    n.Scope,
		Decl:     id,
		Span:     c.tree.Span(id),
	}
}

// reconcile brings a reference in line with the symbol it names. An
// unsuffixed numeric reference adopts a numeric declared type; any other
// disagreement is a conflict.
func (c *Checker) reconcile(ref ast.NodeID, sym *Symbol) {
	r := c.tree.Node(ref).(*ast.VarRef)
	r.Scope = sym.Scope
	r.TypeName = sym.TypeName
	if len(r.Fields) > 0 {
		c.resolveFields(ref, r, sym)
		return
	}
	if r.Type == sym.Type {
		return
	}
	if !ast.HasSuffix(r.Name) && IsNumeric(r.Type) && IsNumeric(sym.Type) {
		r.Type = sym.Type
		return
	}
	c.reportConflict(diag.CodeTypeConflict, ref, "used as "+r.Type.String(),
		sym.Span, "declared as "+sym.Type.String(),
		"%s is used as %s but declared as %s", r.Name, r.Type, sym.Type)
}

// resolveFields walks a `.field` path from the variable's UDT and sets the
// reference's type to that of the last field.
func (c *Checker) resolveFields(ref ast.NodeID, r *ast.VarRef, sym *Symbol) {
	if sym.Type != ast.TypeUDT {
		c.reportError(diag.CodeTypeUnknownField, ref, "%s is %s, not a user-defined type", r.Name, sym.Type)
		return
	}
	udtName := sym.TypeName
	for _, f := range r.Fields {
		u, ok := c.info.UDT(udtName)
		if !ok {
			c.reportError(diag.CodeTypeUnknownUDT, ref, "unknown type %s", udtName)
			return
		}
		_, field, ok := u.Field(f)
		if !ok {
			c.reportErrorWithHelp(diag.CodeTypeUnknownField, ref, fieldHelp(u),
				"type %s has no field %s", u.Name, f)
			return
		}
		r.Type = field.Type
		udtName = field.TypeName
	}
}

func fieldHelp(u *UDT) string {
	if len(u.Fields) == 0 {
		return ""
	}
	names := make([]string, len(u.Fields))
	for i, f := range u.Fields {
		names[i] = f.Name
	}
	return "available fields: " + strings.Join(names, ", ")
}

// evalConst folds an integer constant expression: literals, constants and
// the arithmetic operators between them.
func (c *Checker) evalConst(id ast.NodeID) (int, bool) {
	switch n := c.tree.Node(id).(type) {
	case *ast.Literal:
		if n.Type == ast.TypeInteger {
			return int(n.Int), true
		}
	case *ast.ConstRef:
		if v, ok := c.info.Consts[key(n.Name)]; ok {
			return c.evalConst(v)
		}
	case *ast.UnaryOp:
		if n.Op == ast.OpNegate {
			v, ok := c.evalConst(n.Operand)
			return -v, ok
		}
	case *ast.BinaryOp:
		l, lok := c.evalConst(n.Left)
		r, rok := c.evalConst(n.Right)
		if !lok || !rok {
			return 0, false
		}
		switch n.Op {
		case ast.OpAdd:
			return l + r, true
		case ast.OpSub:
			return l - r, true
		case ast.OpMul:
			return l * r, true
		case ast.OpDiv:
			if r != 0 {
				return l / r, true
			}
		}
	}
	return 0, false
}

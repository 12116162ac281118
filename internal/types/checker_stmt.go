package types

import (
	"strings"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
)

func (c *Checker) checkStmt(id ast.NodeID) {
	if id == ast.NoNode {
		return
	}
	switch n := c.tree.Node(id).(type) {
	case *ast.Block:
		for _, s := range n.Stmts {
			c.checkStmt(s)
		}

	case *ast.Assignment:
		to := c.checkLValue(n.Target)
		from := c.checkExpr(n.Value)
		if to != ast.TypeNone && from != ast.TypeNone && !Assignable(to, from) {
			c.reportError(diag.CodeTypeInvalidOperation, id, "cannot assign %s to %s", from, to)
		}

	case *ast.Branch:
		c.checkCondition(n.Cond)
		paths := c.tree.Node(n.Paths).(*ast.BranchPaths)
		c.checkStmt(paths.Then)
		c.checkStmt(paths.Else)

	case *ast.Select:
		c.checkSelect(n)

	case *ast.Loop:
		c.checkStmt(n.Body)
	case *ast.LoopWhile:
		c.checkCondition(n.Cond)
		c.checkStmt(n.Body)
	case *ast.LoopUntil:
		c.checkStmt(n.Body)
		c.checkCondition(n.Cond)

	case *ast.FuncReturn:
		if n.Value != ast.NoNode && c.fn != nil {
			c.fn.exits = append(c.fn.exits, exitValue{n.Value, c.checkExpr(n.Value)})
		}

	case *ast.Goto:
		c.checkLabel(id, n.Label)
	case *ast.SubCall:
		c.checkLabel(id, n.Name)

	case *ast.BinaryOp:
		if n.Op != ast.OpInc && n.Op != ast.OpDec {
			c.reportError(diag.CodeTypeInvalidOperation, id, "expression %s used as a statement", n.Op)
			return
		}
		target := c.checkLValue(n.Left)
		amount := c.checkExpr(n.Right)
		if !IsNumeric(target) || !IsNumeric(amount) {
			c.reportError(diag.CodeTypeInvalidOperation, id, "%s needs a numeric variable and amount", strings.ToLower(n.Op.String()))
		}

	case *ast.VarDecl:
		c.checkVarDecl(id, n)

	case *ast.ArrayDecl:
		c.checkArrayDecl(id, n)

	case *ast.ConstDecl:
		c.checkExpr(n.Value)

	case *ast.Keyword:
		c.checkKeyword(id, n, false)

	case *ast.FuncCall:
		c.checkCall(id, n, false)

	case *ast.FuncDecl:
		c.reportError(diag.CodeTypeInvalidOperation, id, "function %s must be defined at the top level", n.Name)

	case *ast.UDTDecl, *ast.Label, *ast.SubReturn, *ast.Break:
		// collected up front or nothing to check

	default:
		c.reportError(diag.CodeTypeInvalidOperation, id, "%s is not a statement", c.tree.Kind(id))
	}
}

func (c *Checker) checkCondition(id ast.NodeID) {
	if t := c.checkExpr(id); t != ast.TypeNone && !IsNumeric(t) {
		c.reportError(diag.CodeTypeInvalidOperation, id, "condition must be numeric or boolean, not %s", t)
	}
}

func (c *Checker) checkSelect(n *ast.Select) {
	subject := c.checkExpr(n.Expr)
	list := c.tree.Node(n.Cases).(*ast.CaseList)
	for _, cid := range list.Cases {
		cs := c.tree.Node(cid).(*ast.Case)
		for _, v := range c.tree.CommaList(cs.Values) {
			if t := c.checkExpr(v); t != ast.TypeNone && subject != ast.TypeNone && !comparable(subject, t) {
				c.reportError(diag.CodeTypeInvalidOperation, v, "cannot match %s against %s", t, subject)
			}
		}
		c.checkStmt(cs.Body)
	}
	c.checkStmt(list.Default)
}

func (c *Checker) checkLabel(id ast.NodeID, name string) {
	if _, ok := c.scope.Labels[key(name)]; !ok {
		where := "the main program"
		if c.fn != nil {
			where = "function " + c.fn.Name
		}
		c.reportError(diag.CodeTypeUndefinedLabel, id, "label %s is not defined in %s", name, where)
	}
}

func (c *Checker) checkVarDecl(id ast.NodeID, n *ast.VarDecl) {
	if n.Type == ast.TypeUDT {
		if _, ok := c.info.UDT(n.TypeName); !ok {
			c.reportError(diag.CodeTypeUnknownUDT, id, "unknown type %s", n.TypeName)
		}
	}
	if n.Init != ast.NoNode {
		if t := c.checkExpr(n.Init); t != ast.TypeNone && !Assignable(n.Type, t) {
			c.reportError(diag.CodeTypeInvalidOperation, n.Init, "cannot initialise %s %s with %s", n.Type, n.Name, t)
		}
	}
	target := c.scope
	if n.Scope == ast.ScopeGlobal {
		target = c.GlobalScope
	}
	c.declareVar(target, id, n)
}

func (c *Checker) checkArrayDecl(id ast.NodeID, n *ast.ArrayDecl) {
	var dims []int
	for _, d := range c.tree.CommaList(n.Dims) {
		c.checkExpr(d)
		v, ok := c.evalConst(d)
		if !ok || v < 0 {
			c.reportErrorWithHelp(diag.CodeTypeNonConstantDim, d,
				"use an integer literal or a #constant",
				"array %s needs non-negative constant dimensions", n.Name)
			return
		}
		dims = append(dims, v)
	}
	c.info.Dims[id] = dims

	target := c.scope
	if n.Scope == ast.ScopeGlobal {
		target = c.GlobalScope
	}
	c.declareArray(target, id, n)
}

package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/parser"
)

func (g *Generator) genStmt(id ast.NodeID) error {
	if id == ast.NoNode {
		return nil
	}
	fc := g.fn
	switch n := g.tree.Node(id).(type) {
	case *ast.Block:
		for _, s := range n.Stmts {
			if err := g.genStmt(s); err != nil {
				return err
			}
		}
		return nil

	case *ast.Assignment:
		ptr, elem, err := g.genLValue(n.Target)
		if err != nil {
			return err
		}
		return g.store(n.Value, ptr, elem)

	case *ast.VarDecl:
		return g.genVarDecl(n)

	case *ast.ArrayDecl:
		v, err := g.arraySlot(id, n)
		if err != nil {
			return err
		}
		// dim clears the array each time it runs
		fc.cur.NewStore(constant.NewZeroInitializer(v.array), v.ptr)
		return nil

	case *ast.BinaryOp:
		if n.Op == ast.OpInc || n.Op == ast.OpDec {
			return g.genIncDec(n)
		}

	case *ast.Branch:
		return g.genBranch(n)

	case *ast.Select:
		return g.genSelect(n)

	case *ast.Loop:
		body := fc.newBlock("do.body")
		end := fc.newBlock("do.end")
		fc.branchTo(body)
		fc.cur = body
		if err := g.genLoopBody(n.Body, end); err != nil {
			return err
		}
		fc.branchTo(body)
		fc.cur = end
		return nil

	case *ast.LoopWhile:
		cond := fc.newBlock("while.cond")
		body := fc.newBlock("while.body")
		end := fc.newBlock("while.end")
		fc.branchTo(cond)
		fc.cur = cond
		if err := g.genCondBr(n.Cond, body, end); err != nil {
			return err
		}
		fc.cur = body
		if err := g.genLoopBody(n.Body, end); err != nil {
			return err
		}
		fc.branchTo(cond)
		fc.cur = end
		return nil

	case *ast.LoopUntil:
		body := fc.newBlock("repeat.body")
		cond := fc.newBlock("repeat.cond")
		end := fc.newBlock("repeat.end")
		fc.branchTo(body)
		fc.cur = body
		if err := g.genLoopBody(n.Body, end); err != nil {
			return err
		}
		fc.branchTo(cond)
		fc.cur = cond
		if err := g.genCondBr(n.Cond, end, body); err != nil {
			return err
		}
		fc.cur = end
		return nil

	case *ast.Break:
		if len(fc.loopStack) == 0 {
			return g.internalf("exit outside of a loop")
		}
		fc.branchTo(fc.loopStack[len(fc.loopStack)-1])
		fc.deadBlock()
		return nil

	case *ast.FuncReturn:
		if fc.decl == nil {
			return g.internalf("exitfunction in the main program")
		}
		if err := g.genReturnValue(n.Value); err != nil {
			return err
		}
		fc.deadBlock()
		return nil

	case *ast.Label:
		b := g.label(n.Name)
		fc.placed[key(n.Name)] = true
		fc.branchTo(b)
		fc.cur = b
		return nil

	case *ast.Goto:
		if _, ok := fc.jumps[key(n.Label)]; !ok {
			fc.jumps[key(n.Label)] = id
		}
		fc.branchTo(g.label(n.Label))
		fc.deadBlock()
		return nil

	case *ast.SubCall:
		if _, ok := fc.jumps[key(n.Name)]; !ok {
			fc.jumps[key(n.Name)] = id
		}
		return g.genGosub(n.Name)

	case *ast.SubReturn:
		return g.genGosubReturn()

	case *ast.Keyword:
		if key(n.Name) == parser.EndCommand {
			return g.genEnd()
		}
		_, err := g.genKeyword(id, n)
		return err

	case *ast.FuncCall:
		_, err := g.genCall(n)
		return err

	case *ast.ConstDecl, *ast.UDTDecl:
		return nil
	}
	return g.internalf("cannot lower %s as a statement", g.tree.Kind(id))
}

// store evaluates valueID and stores it into ptr, converted to elem.
func (g *Generator) store(valueID ast.NodeID, ptr value.Value, elem lltypes.Type) error {
	v, err := g.genExpr(valueID)
	if err != nil {
		return err
	}
	v, err = g.convert(g.fn.cur, v, elem)
	if err != nil {
		return err
	}
	g.fn.cur.NewStore(v, ptr)
	return nil
}

func (g *Generator) genVarDecl(n *ast.VarDecl) error {
	var v *variable
	if n.Scope == ast.ScopeGlobal {
		v = g.global(n.Name, n.Type, n.TypeName)
	} else {
		v = g.local(n.Name, n.Type, n.TypeName)
	}
	if !v.elem.Equal(g.irType(n.Type, n.TypeName)) {
		return g.internalf("%s declared as %s but its slot holds %s", n.Name, n.Type, v.elem)
	}
	if n.Init == ast.NoNode {
		return nil
	}
	return g.store(n.Init, v.ptr, v.elem)
}

// arraySlot returns the storage of the array an ArrayDecl declares.
func (g *Generator) arraySlot(id ast.NodeID, n *ast.ArrayDecl) (*variable, error) {
	if n.Scope == ast.ScopeGlobal {
		return g.globalArray(id, n)
	}
	return g.localArray(id, n)
}

// genIncDec lowers `inc v, n` and `dec v, n`.
func (g *Generator) genIncDec(n *ast.BinaryOp) error {
	fc := g.fn
	ptr, elem, err := g.genLValue(n.Left)
	if err != nil {
		return err
	}
	amount, err := g.genExpr(n.Right)
	if err != nil {
		return err
	}
	if amount, err = g.convert(fc.cur, amount, elem); err != nil {
		return err
	}
	cur := fc.cur.NewLoad(elem, ptr)
	var res value.Value
	switch {
	case isFloat(elem) && n.Op == ast.OpInc:
		res = fc.cur.NewFAdd(cur, amount)
	case isFloat(elem):
		res = fc.cur.NewFSub(cur, amount)
	case n.Op == ast.OpInc:
		res = fc.cur.NewAdd(cur, amount)
	default:
		res = fc.cur.NewSub(cur, amount)
	}
	fc.cur.NewStore(res, ptr)
	return nil
}

// genCondBr evaluates cond and branches on it.
func (g *Generator) genCondBr(cond ast.NodeID, ifTrue, ifFalse *ir.Block) error {
	v, err := g.genExpr(cond)
	if err != nil {
		return err
	}
	b, err := g.toBool(g.fn.cur, v)
	if err != nil {
		return err
	}
	g.fn.cur.NewCondBr(b, ifTrue, ifFalse)
	return nil
}

// genLoopBody generates a loop body with end as the target of exit.
func (g *Generator) genLoopBody(body ast.NodeID, end *ir.Block) error {
	fc := g.fn
	fc.loopStack = append(fc.loopStack, end)
	defer func() { fc.loopStack = fc.loopStack[:len(fc.loopStack)-1] }()
	return g.genStmt(body)
}

func (g *Generator) genBranch(n *ast.Branch) error {
	fc := g.fn
	paths := g.tree.Node(n.Paths).(*ast.BranchPaths)
	then := fc.newBlock("if.then")
	end := fc.newBlock("if.end")
	els := end
	if paths.Else != ast.NoNode {
		els = fc.newBlock("if.else")
	}
	if err := g.genCondBr(n.Cond, then, els); err != nil {
		return err
	}

	fc.cur = then
	if err := g.genStmt(paths.Then); err != nil {
		return err
	}
	fc.branchTo(end)

	if paths.Else != ast.NoNode {
		fc.cur = els
		if err := g.genStmt(paths.Else); err != nil {
			return err
		}
		fc.branchTo(end)
	}
	fc.cur = end
	return nil
}

// genSelect lowers select as a chain of compare blocks, one per case
// value, falling through to the default body.
func (g *Generator) genSelect(n *ast.Select) error {
	fc := g.fn
	subject, err := g.genExpr(n.Expr)
	if err != nil {
		return err
	}
	list := g.tree.Node(n.Cases).(*ast.CaseList)
	end := fc.newBlock("select.end")

	for _, cid := range list.Cases {
		cs := g.tree.Node(cid).(*ast.Case)
		body := fc.newBlock("case.body")
		next := fc.newBlock("case.next")
		values := g.tree.CommaList(cs.Values)
		for i, vid := range values {
			eq, err := g.genEquals(subject, vid)
			if err != nil {
				return err
			}
			miss := next
			if i+1 < len(values) {
				miss = fc.newBlock("case.test")
			}
			fc.cur.NewCondBr(eq, body, miss)
			fc.cur = miss
		}
		if len(values) == 0 {
			fc.branchTo(next)
		}

		fc.cur = body
		if err := g.genStmt(cs.Body); err != nil {
			return err
		}
		fc.branchTo(end)
		fc.cur = next
	}

	if err := g.genStmt(list.Default); err != nil {
		return err
	}
	fc.branchTo(end)
	fc.cur = end
	return nil
}

// genEquals compares a select subject against one case value.
func (g *Generator) genEquals(subject value.Value, vid ast.NodeID) (value.Value, error) {
	fc := g.fn
	v, err := g.genExpr(vid)
	if err != nil {
		return nil, err
	}
	if isString(subject.Type()) {
		return g.engine.StringCompare(fc.cur, enum.IPredEQ, subject, v), nil
	}
	if v, err = g.convert(fc.cur, v, subject.Type()); err != nil {
		return nil, err
	}
	if isFloat(subject.Type()) {
		return fc.cur.NewFCmp(enum.FPredOEQ, subject, v), nil
	}
	return fc.cur.NewICmp(enum.IPredEQ, subject, v), nil
}

// genReturnValue lowers exitfunction.
func (g *Generator) genReturnValue(id ast.NodeID) error {
	fc := g.fn
	if id == ast.NoNode {
		ret := fc.fn.Sig.RetType
		if ret.Equal(lltypes.Void) {
			fc.cur.NewRet(nil)
		} else {
			fc.cur.NewRet(g.zero(ret))
		}
		return nil
	}
	return g.genReturn(id)
}

// genEnd stops the program: the game entry simply returns, anywhere else
// the process exits.
func (g *Generator) genEnd() error {
	fc := g.fn
	if fc.decl == nil {
		fc.cur.NewRet(nil)
	} else {
		g.engine.Exit(fc.cur, 0)
		fc.cur.NewUnreachable()
	}
	fc.deadBlock()
	return nil
}

package codegen

import (
	"fmt"
	"log/slog"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/diag"
)

// variable is a storage slot: a stack slot, a module global or a flat
// array.
type variable struct {
	ptr  value.Value
	elem lltypes.Type // type of one element
	typ  ast.DataType
	udt  string

	// arrays only
	dims  []int // upper bounds as declared
	array *lltypes.ArrayType
}

// functionContext tracks the function being generated.
type functionContext struct {
	fn   *ir.Func
	decl *ast.FuncDecl // nil for the game entry

	// allocas and zero stores go to entry, which branches to the first body
	// block once the function is complete
	entry *ir.Block
	cur   *ir.Block

	locals map[string]*variable
	arrays map[string]*variable

	// string literals by content
	strings map[string]constant.Constant

	labels map[string]*ir.Block
	placed map[string]bool
	// first goto of each label, for diagnostics
	jumps map[string]ast.NodeID

	// exit blocks of the enclosing loops, innermost last
	loopStack []*ir.Block

	gosub *gosubState

	blockCounter int
}

func (fc *functionContext) newBlock(prefix string) *ir.Block {
	fc.blockCounter++
	return fc.fn.NewBlock(fmt.Sprintf("%s.%d", prefix, fc.blockCounter))
}

// terminated reports whether the current block already ends in a
// terminator, in which case following code is unreachable.
func (fc *functionContext) terminated() bool {
	return fc.cur.Term != nil
}

// branchTo ends the current block with a jump to target unless it is
// already terminated.
func (fc *functionContext) branchTo(target *ir.Block) {
	if !fc.terminated() {
		fc.cur.NewBr(target)
	}
}

// deadBlock starts a block for code following a terminator.
func (fc *functionContext) deadBlock() {
	fc.cur = fc.newBlock("dead")
}

// genBody generates one function. decl is nil for the game entry.
func (g *Generator) genBody(f *ir.Func, decl *ast.FuncDecl, stmts []ast.NodeID) error {
	fc := &functionContext{
		fn:      f,
		decl:    decl,
		locals:  map[string]*variable{},
		arrays:  map[string]*variable{},
		strings: map[string]constant.Constant{},
		labels:  map[string]*ir.Block{},
		placed:  map[string]bool{},
		jumps:   map[string]ast.NodeID{},
	}
	g.fn = fc
	defer func() { g.fn = nil }()

	fc.entry = f.NewBlock("entry")
	body := f.NewBlock("body")
	fc.cur = body

	if decl != nil {
		for i, p := range decl.Params {
			sym := g.tree.SymOf(p)
			v := g.local(sym.Name, sym.Type, sym.TypeName)
			fc.entry.NewStore(f.Params[i], v.ptr)
		}
	}

	for _, s := range stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}

	if err := g.finishFunction(); err != nil {
		return err
	}
	fc.entry.NewBr(body)

	for name, id := range fc.jumps {
		if !fc.placed[name] {
			g.reportError(diag.StageCodegen, diag.CodeGenUndefinedLabel, id, "",
				"label %s is not defined in %s", name, f.Name())
		}
	}
	g.logger.Debug("generated function", slog.String("name", f.Name()), slog.Int("blocks", len(f.Blocks)))
	return nil
}

// finishFunction returns from the block control falls off the end in. A
// function returns the value after endfunction, or zero.
func (g *Generator) finishFunction() error {
	fc := g.fn
	if err := g.finishGosub(); err != nil {
		return err
	}
	if fc.terminated() {
		return nil
	}
	ret := fc.fn.Sig.RetType
	if ret.Equal(lltypes.Void) {
		if fc.decl != nil && fc.decl.Return != ast.NoNode {
			if _, err := g.genExpr(fc.decl.Return); err != nil {
				return err
			}
		}
		fc.cur.NewRet(nil)
		return nil
	}
	if fc.decl == nil || fc.decl.Return == ast.NoNode {
		fc.cur.NewRet(g.zero(ret))
		return nil
	}
	return g.genReturn(fc.decl.Return)
}

// genReturn returns the value of id converted to the function's type.
func (g *Generator) genReturn(id ast.NodeID) error {
	fc := g.fn
	ret := fc.fn.Sig.RetType
	if ret.Equal(lltypes.Void) {
		fc.cur.NewRet(nil)
		return nil
	}
	v, err := g.genExpr(id)
	if err != nil {
		return err
	}
	v, err = g.convert(fc.cur, v, ret)
	if err != nil {
		return err
	}
	fc.cur.NewRet(v)
	return nil
}

// local returns the stack slot of a local variable, allocating and zeroing
// it in the entry block on first use.
func (g *Generator) local(name string, t ast.DataType, udt string) *variable {
	fc := g.fn
	if v, ok := fc.locals[key(name)]; ok {
		return v
	}
	elem := g.irType(t, udt)
	slot := fc.entry.NewAlloca(elem)
	slot.SetName(sanitize(name) + ".addr")
	fc.entry.NewStore(g.zero(elem), slot)
	v := &variable{ptr: slot, elem: elem, typ: t, udt: udt}
	fc.locals[key(name)] = v
	return v
}

// arrayVariable lays out an array: one flat run of elements, row-major.
func (g *Generator) arrayVariable(id ast.NodeID, n *ast.ArrayDecl) (*variable, error) {
	dims, ok := g.info.Dims[id]
	if !ok {
		return nil, g.internalf("array %s has no evaluated dimensions", n.Name)
	}
	total := uint64(1)
	for _, d := range dims {
		total *= uint64(d) + 1
	}
	elem := g.irType(n.Type, n.TypeName)
	return &variable{
		elem:  elem,
		typ:   n.Type,
		udt:   n.TypeName,
		dims:  dims,
		array: lltypes.NewArray(total, elem),
	}, nil
}

// localArray allocates a local array in the entry block.
func (g *Generator) localArray(id ast.NodeID, n *ast.ArrayDecl) (*variable, error) {
	fc := g.fn
	if v, ok := fc.arrays[key(n.Name)]; ok {
		return v, nil
	}
	v, err := g.arrayVariable(id, n)
	if err != nil {
		return nil, err
	}
	slot := fc.entry.NewAlloca(v.array)
	slot.SetName(sanitize(n.Name) + ".arr")
	v.ptr = slot
	fc.arrays[key(n.Name)] = v
	return v, nil
}

// stringConst returns an i8* to a private constant holding s, one global
// per distinct literal per function.
func (g *Generator) stringConst(s string) constant.Constant {
	fc := g.fn
	if c, ok := fc.strings[s]; ok {
		return c
	}
	data := constant.NewCharArrayFromString(s + "\x00")
	gv := g.m.NewGlobalDef(fmt.Sprintf(".str.%s.%d", fc.fn.Name(), len(fc.strings)), data)
	gv.Linkage = enum.LinkagePrivate
	gv.Immutable = true
	zero := constant.NewInt(lltypes.I32, 0)
	c := constant.NewGetElementPtr(data.Typ, gv, zero, zero)
	fc.strings[s] = c
	return c
}

// label returns the block a label names, creating it on first mention.
func (g *Generator) label(name string) *ir.Block {
	fc := g.fn
	if b, ok := fc.labels[key(name)]; ok {
		return b
	}
	fc.blockCounter++
	b := fc.fn.NewBlock(fmt.Sprintf("label.%s.%d", sanitize(key(name)), fc.blockCounter))
	fc.labels[key(name)] = b
	return b
}

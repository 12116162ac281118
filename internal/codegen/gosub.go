package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
)

// gosubDepth is the number of nested gosubs a function supports.
const gosubDepth = 32

// The return stack holds continuation numbers rather than block addresses:
// `return` pops one and switches on it. An empty stack pops -1, which
// matches no continuation, so a stray return falls through.
var gosubStackType = lltypes.NewArray(gosubDepth, lltypes.I32)

// gosubState is allocated the first time a function uses gosub or return.
type gosubState struct {
	stack *ir.InstAlloca
	sp    *ir.InstAlloca

	// continuation blocks; a block's index is its number on the stack
	conts []*ir.Block
	// return sites, completed once every continuation is known
	returns []gosubReturn
}

type gosubReturn struct {
	block *ir.Block // pops and dispatches
	after *ir.Block // reached when the stack was empty
}

func (g *Generator) gosubFor() *gosubState {
	fc := g.fn
	if fc.gosub != nil {
		return fc.gosub
	}
	st := &gosubState{
		stack: fc.entry.NewAlloca(gosubStackType),
		sp:    fc.entry.NewAlloca(lltypes.I32),
	}
	st.stack.SetName("gosubStack")
	st.sp.SetName("gosubSP")
	fc.entry.NewStore(constant.NewInt(lltypes.I32, 0), st.sp)
	fc.gosub = st
	return st
}

// genGosub pushes the continuation's number and jumps to the label.
func (g *Generator) genGosub(label string) error {
	fc := g.fn
	st := g.gosubFor()
	cont := fc.newBlock("gosub.ret")
	id := constant.NewInt(lltypes.I32, int64(len(st.conts)))
	st.conts = append(st.conts, cont)

	fc.cur.NewCall(g.gosubPushFunc(), st.stack, st.sp, id)
	fc.branchTo(g.label(label))
	fc.cur = cont
	return nil
}

// genGosubReturn ends the current block in a return site. The dispatch is
// filled in by finishGosub.
func (g *Generator) genGosubReturn() error {
	fc := g.fn
	st := g.gosubFor()
	site := fc.newBlock("gosub.return")
	after := fc.newBlock("gosub.none")
	fc.branchTo(site)
	st.returns = append(st.returns, gosubReturn{block: site, after: after})
	fc.cur = after
	return nil
}

// finishGosub terminates every return site with a switch over the
// continuations the function ended up with.
func (g *Generator) finishGosub() error {
	st := g.fn.gosub
	if st == nil {
		return nil
	}
	for _, r := range st.returns {
		if len(st.conts) == 0 {
			r.block.NewBr(r.after)
			continue
		}
		addr := r.block.NewCall(g.gosubPopFunc(), st.stack, st.sp)
		cases := make([]*ir.Case, len(st.conts))
		for i, c := range st.conts {
			cases[i] = ir.NewCase(constant.NewInt(lltypes.I32, int64(i)), c)
		}
		r.block.NewSwitch(addr, r.after, cases...)
	}
	return nil
}

var gosubStackPtr = lltypes.NewPointer(gosubStackType)

// gosubPushFunc defines gosubPushAddress(stack, sp, val). Pushing onto a
// full stack overwrites the top entry.
func (g *Generator) gosubPushFunc() *ir.Func {
	if g.gosubPush != nil {
		return g.gosubPush
	}
	stack := ir.NewParam("stack", gosubStackPtr)
	sp := ir.NewParam("sp", lltypes.NewPointer(lltypes.I32))
	val := ir.NewParam("val", lltypes.I32)
	f := g.m.NewFunc("gosubPushAddress", lltypes.Void, stack, sp, val)
	f.Linkage = enum.LinkageInternal

	b := f.NewBlock("entry")
	index := b.NewLoad(lltypes.I32, sp)
	limit := constant.NewInt(lltypes.I32, gosubDepth-1)
	full := b.NewICmp(enum.IPredSGT, index, limit)
	slot := b.NewSelect(full, limit, index)
	addr := b.NewGetElementPtr(gosubStackType, stack, constant.NewInt(lltypes.I32, 0), slot)
	b.NewStore(val, addr)
	b.NewStore(b.NewAdd(slot, constant.NewInt(lltypes.I32, 1)), sp)
	b.NewRet(nil)

	g.gosubPush = f
	return f
}

// gosubPopFunc defines gosubPopAddress(stack, sp), which returns -1 on an
// empty stack.
func (g *Generator) gosubPopFunc() *ir.Func {
	if g.gosubPop != nil {
		return g.gosubPop
	}
	stack := ir.NewParam("stack", gosubStackPtr)
	sp := ir.NewParam("sp", lltypes.NewPointer(lltypes.I32))
	f := g.m.NewFunc("gosubPopAddress", lltypes.I32, stack, sp)
	f.Linkage = enum.LinkageInternal

	entry := f.NewBlock("entry")
	pop := f.NewBlock("pop")
	empty := f.NewBlock("empty")

	index := entry.NewLoad(lltypes.I32, sp)
	entry.NewCondBr(entry.NewICmp(enum.IPredSLE, index, constant.NewInt(lltypes.I32, 0)), empty, pop)

	top := pop.NewSub(index, constant.NewInt(lltypes.I32, 1))
	addr := pop.NewGetElementPtr(gosubStackType, stack, constant.NewInt(lltypes.I32, 0), top)
	val := pop.NewLoad(lltypes.I32, addr)
	pop.NewStore(top, sp)
	pop.NewRet(val)

	empty.NewRet(constant.NewInt(lltypes.I32, -1))

	g.gosubPop = f
	return f
}

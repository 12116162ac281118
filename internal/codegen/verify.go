package codegen

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"
)

// Verify checks the structural consistency of a finished module: every
// block ends in a terminator that stays within its function, returns match
// the function's result type, stores and direct calls are well typed. A
// failure means the generator is broken, so the result is an
// *InternalError.
func Verify(m *ir.Module) error {
	var problems []string
	report := func(f *ir.Func, format string, args ...any) {
		problems = append(problems, fmt.Sprintf("%s: ", f.Name())+fmt.Sprintf(format, args...))
	}

	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			for _, inst := range b.Insts {
				switch inst := inst.(type) {
				case *ir.InstStore:
					ptr, ok := inst.Dst.Type().(*lltypes.PointerType)
					if !ok {
						report(f, "block %s stores through non-pointer %s", b.Name(), inst.Dst.Type())
						continue
					}
					if !ptr.ElemType.Equal(inst.Src.Type()) {
						report(f, "block %s stores %s into %s", b.Name(), inst.Src.Type(), ptr)
					}
				case *ir.InstCall:
					if callee, ok := inst.Callee.(*ir.Func); ok {
						checkCall(f, b, callee, inst, report)
					}
				}
			}

			if b.Term == nil {
				report(f, "block %s has no terminator", b.Name())
				continue
			}
			for _, succ := range b.Term.Succs() {
				if succ.Parent != f {
					report(f, "block %s branches to %s outside the function", b.Name(), succ.Name())
				}
			}
			if ret, ok := b.Term.(*ir.TermRet); ok {
				want := f.Sig.RetType
				switch {
				case ret.X == nil && !want.Equal(lltypes.Void):
					report(f, "block %s returns nothing from a %s function", b.Name(), want)
				case ret.X != nil && !ret.X.Type().Equal(want):
					report(f, "block %s returns %s from a %s function", b.Name(), ret.X.Type(), want)
				}
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &InternalError{Msg: "module verification failed:\n  " + strings.Join(problems, "\n  ")}
}

func checkCall(f *ir.Func, b *ir.Block, callee *ir.Func, call *ir.InstCall, report func(*ir.Func, string, ...any)) {
	sig := callee.Sig
	if len(call.Args) < len(sig.Params) || (!sig.Variadic && len(call.Args) != len(sig.Params)) {
		report(f, "block %s calls %s with %d arguments, expected %d",
			b.Name(), callee.Name(), len(call.Args), len(sig.Params))
		return
	}
	for i, p := range sig.Params {
		if !call.Args[i].Type().Equal(p) {
			report(f, "block %s passes %s as argument %d of %s, expected %s",
				b.Name(), call.Args[i].Type(), i+1, callee.Name(), p)
		}
	}
}

package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/odb-lang/odb-compiler/internal/ast"
)

var i8ptr = lltypes.NewPointer(lltypes.I8)

// irType maps a language type onto its IR representation.
func (g *Generator) irType(t ast.DataType, udt string) lltypes.Type {
	switch t {
	case ast.TypeBoolean:
		return lltypes.I1
	case ast.TypeInteger:
		return lltypes.I32
	case ast.TypeFloat:
		return lltypes.Double
	case ast.TypeString:
		return i8ptr
	case ast.TypeUDT:
		return g.structType(udt)
	}
	return lltypes.Void
}

// structType returns the named struct for a UDT, defining it and any UDTs
// it embeds on first use.
func (g *Generator) structType(name string) *lltypes.StructType {
	if st, ok := g.structs[key(name)]; ok {
		return st
	}
	u, ok := g.info.UDT(name)
	if !ok {
		// The checker rejects unknown types; an opaque struct keeps the
		// module printable until verification reports the problem.
		st := lltypes.NewStruct()
		g.structs[key(name)] = st
		return st
	}
	fields := make([]lltypes.Type, len(u.Fields))
	for i, f := range u.Fields {
		fields[i] = g.irType(f.Type, f.TypeName)
	}
	st := lltypes.NewStruct(fields...)
	g.m.NewTypeDef(u.Name, st)
	g.structs[key(name)] = st
	return st
}

// zero is the initial value of a fresh variable. Strings start out empty
// rather than null so they can be passed straight to plugins.
func (g *Generator) zero(t lltypes.Type) constant.Constant {
	switch t := t.(type) {
	case *lltypes.IntType:
		return constant.NewInt(t, 0)
	case *lltypes.FloatType:
		return constant.NewFloat(t, 0)
	case *lltypes.PointerType:
		if t.Equal(i8ptr) {
			return g.empty()
		}
		return constant.NewNull(t)
	}
	return constant.NewZeroInitializer(t)
}

func (g *Generator) empty() constant.Constant {
	if g.emptyString == nil {
		data := constant.NewCharArrayFromString("\x00")
		gv := g.m.NewGlobalDef(".str.empty", data)
		gv.Linkage = enum.LinkagePrivate
		gv.Immutable = true
		zero := constant.NewInt(lltypes.I32, 0)
		g.emptyString = constant.NewGetElementPtr(data.Typ, gv, zero, zero)
	}
	return g.emptyString
}

func isInt(t lltypes.Type) bool {
	_, ok := t.(*lltypes.IntType)
	return ok
}

func isFloat(t lltypes.Type) bool {
	_, ok := t.(*lltypes.FloatType)
	return ok
}

func isBool(t lltypes.Type) bool {
	it, ok := t.(*lltypes.IntType)
	return ok && it.BitSize == 1
}

func isString(t lltypes.Type) bool {
	return t.Equal(i8ptr)
}

// convert appends the cast that turns v into a value of type to. Integers
// widen with sign extension except booleans, which zero-extend.
func (g *Generator) convert(b *ir.Block, v value.Value, to lltypes.Type) (value.Value, error) {
	from := v.Type()
	if from.Equal(to) {
		return v, nil
	}
	switch f := from.(type) {
	case *lltypes.IntType:
		switch t := to.(type) {
		case *lltypes.IntType:
			switch {
			case t.BitSize == 1:
				return b.NewICmp(enum.IPredNE, v, constant.NewInt(f, 0)), nil
			case f.BitSize == 1:
				return b.NewZExt(v, t), nil
			case f.BitSize < t.BitSize:
				return b.NewSExt(v, t), nil
			}
			return b.NewTrunc(v, t), nil
		case *lltypes.FloatType:
			if f.BitSize == 1 {
				return b.NewUIToFP(v, t), nil
			}
			return b.NewSIToFP(v, t), nil
		}
	case *lltypes.FloatType:
		switch t := to.(type) {
		case *lltypes.IntType:
			if t.BitSize == 1 {
				return b.NewFCmp(enum.FPredONE, v, constant.NewFloat(f, 0)), nil
			}
			return b.NewFPToSI(v, t), nil
		case *lltypes.FloatType:
			if t.Equal(lltypes.Double) {
				return b.NewFPExt(v, t), nil
			}
			return b.NewFPTrunc(v, t), nil
		}
	}
	return nil, g.internalf("cannot convert %s to %s", from, to)
}

// toBool converts a numeric value to i1 by comparing it against zero.
func (g *Generator) toBool(b *ir.Block, v value.Value) (value.Value, error) {
	return g.convert(b, v, lltypes.I1)
}

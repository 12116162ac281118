package ast

import "fmt"

// Kind identifies a node type.
type Kind int

const (
	KindInvalid Kind = iota

	// Statements and control flow
	KindBlock
	KindAssignment
	KindBranch
	KindBranchPaths
	KindSelect
	KindCaseList
	KindCase
	KindFuncReturn
	KindSubReturn
	KindGoto
	KindLoop
	KindLoopWhile
	KindLoopUntil
	KindBreak
	KindUDTFieldList

	// Operators
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpInc
	OpDec
	OpShl
	OpShr
	OpBitOr
	OpBitAnd
	OpBitXor
	OpBitNot
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpOr
	OpAnd
	OpXor
	OpNot
	OpComma
	OpNegate

	// Symbols
	KindSymbol
	KindConstDecl
	KindConstRef
	KindVarDecl
	KindVarRef
	KindArrayDecl
	KindArrayRef
	KindUDTDecl
	KindUDTRef
	KindFuncCall
	KindFuncDecl
	KindSubCall
	KindLabel
	KindKeyword

	KindLiteral
)

var kindNames = map[Kind]string{
	KindBlock:        "Block",
	KindAssignment:   "Assignment",
	KindBranch:       "Branch",
	KindBranchPaths:  "BranchPaths",
	KindSelect:       "Select",
	KindCaseList:     "CaseList",
	KindCase:         "Case",
	KindFuncReturn:   "FuncReturn",
	KindSubReturn:    "SubReturn",
	KindGoto:         "Goto",
	KindLoop:         "Loop",
	KindLoopWhile:    "LoopWhile",
	KindLoopUntil:    "LoopUntil",
	KindBreak:        "Break",
	KindUDTFieldList: "UDTFieldList",
	OpAdd:            "Add",
	OpSub:            "Sub",
	OpMul:            "Mul",
	OpDiv:            "Div",
	OpMod:            "Mod",
	OpPow:            "Pow",
	OpInc:            "Inc",
	OpDec:            "Dec",
	OpShl:            "BitShiftLeft",
	OpShr:            "BitShiftRight",
	OpBitOr:          "BitOr",
	OpBitAnd:         "BitAnd",
	OpBitXor:         "BitXor",
	OpBitNot:         "BitNot",
	OpLt:             "Less",
	OpLe:             "LessEqual",
	OpGt:             "Greater",
	OpGe:             "GreaterEqual",
	OpEq:             "Equal",
	OpNe:             "NotEqual",
	OpOr:             "LogicalOr",
	OpAnd:            "LogicalAnd",
	OpXor:            "LogicalXor",
	OpNot:            "LogicalNot",
	OpComma:          "Comma",
	OpNegate:         "Negate",
	KindSymbol:       "Symbol",
	KindConstDecl:    "ConstDecl",
	KindConstRef:     "ConstRef",
	KindVarDecl:      "VarDecl",
	KindVarRef:       "VarRef",
	KindArrayDecl:    "ArrayDecl",
	KindArrayRef:     "ArrayRef",
	KindUDTDecl:      "UDTDecl",
	KindUDTRef:       "UDTRef",
	KindFuncCall:     "FuncCall",
	KindFuncDecl:     "FuncDecl",
	KindSubCall:      "SubCall",
	KindLabel:        "Label",
	KindKeyword:      "Keyword",
	KindLiteral:      "Literal",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsBinaryOp reports whether k is carried by a BinaryOp node.
func (k Kind) IsBinaryOp() bool {
	return k >= OpAdd && k <= OpComma && k != OpBitNot && k != OpNot
}

// IsUnaryOp reports whether k is carried by a UnaryOp node.
func (k Kind) IsUnaryOp() bool {
	return k == OpBitNot || k == OpNot || k == OpNegate
}

// IsComparison reports whether k yields a boolean from two operands.
func (k Kind) IsComparison() bool {
	return k >= OpLt && k <= OpNe
}

// Block is an ordered statement sequence.
type Block struct{ Stmts []NodeID }

// Assignment stores Value into Target (a VarRef or ArrayRef).
type Assignment struct{ Target, Value NodeID }

// Branch is an if/elseif/else chain; Paths is a BranchPaths node.
type Branch struct{ Cond, Paths NodeID }

// BranchPaths holds the two arms of a Branch. Either may be NoNode.
type BranchPaths struct{ Then, Else NodeID }

type Select struct{ Expr, Cases NodeID }

// CaseList holds the case arms of a select in source order plus an optional
// `case default` body.
type CaseList struct {
	Cases   []NodeID
	Default NodeID
}

// Case matches when Expr equals any of the comma-separated Values.
type Case struct{ Values, Body NodeID }

// FuncReturn leaves the current function (exitfunction / endfunction). Value
// may be NoNode.
type FuncReturn struct{ Value NodeID }

// SubReturn returns from the most recent gosub.
type SubReturn struct{}

type Goto struct{ Label string }

// Loop is an unconditional do/loop.
type Loop struct{ Body NodeID }

// LoopWhile tests Cond before each iteration.
type LoopWhile struct{ Cond, Body NodeID }

// LoopUntil runs Body then stops once Cond holds.
type LoopUntil struct{ Cond, Body NodeID }

// Break leaves the innermost loop.
type Break struct{}

// UDTFieldList holds the VarDecl fields of a user-defined type.
type UDTFieldList struct{ Fields []NodeID }

// BinaryOp covers arithmetic, bitwise, relational, logical and comma
// operators, plus inc/dec where Left is the target and Right the amount.
type BinaryOp struct {
	Op          Kind
	Left, Right NodeID
}

// UnaryOp covers negation and logical/bitwise not.
type UnaryOp struct {
	Op      Kind
	Operand NodeID
}

// Literal is a constant value. Type selects which field is meaningful.
type Literal struct {
	Type  DataType
	Bool  bool
	Int   int32
	Float float64
	Str   string
}

// Symbol is a bare name, e.g. the control variable after `next`.
type Symbol struct{ Sym }

type ConstDecl struct {
	Sym
	Value NodeID
}

type ConstRef struct{ Sym }

// VarDecl declares a variable with an optional initialiser. UDT names the
// user-defined type through a UDTRef node when Type == TypeUDT.
type VarDecl struct {
	Sym
	Init NodeID
	UDT  NodeID
}

// VarRef reads or writes a variable. Fields is the `.field` access path
// into a UDT value.
type VarRef struct {
	Sym
	Fields []string
}

// ArrayDecl is `dim`. Dims is a comma tree of dimension expressions.
type ArrayDecl struct {
	Sym
	Dims NodeID
}

// ArrayRef indexes a dim'd array. Args is a comma tree.
type ArrayRef struct {
	Sym
	Args NodeID
}

// UDTDecl is `type … endtype`.
type UDTDecl struct {
	Sym
	Fields NodeID
}

// UDTRef names a user-defined type.
type UDTRef struct{ Sym }

// FuncCall calls a user function. Args is a comma tree.
type FuncCall struct {
	Sym
	Args NodeID
}

// FuncDecl defines a user function. Params are VarDecl nodes; Return is the
// expression after endfunction, or NoNode.
type FuncDecl struct {
	Sym
	Params []NodeID
	Body   NodeID
	Return NodeID
}

// SubCall is `gosub label`.
type SubCall struct{ Sym }

// Label marks a jump target.
type Label struct{ Sym }

// Keyword invokes a command from the keyword database. Sym.Type is the
// return type, TypeNone when used as a statement.
type Keyword struct {
	Sym
	Args NodeID
}

func (*Block) Kind() Kind        { return KindBlock }
func (*Assignment) Kind() Kind   { return KindAssignment }
func (*Branch) Kind() Kind       { return KindBranch }
func (*BranchPaths) Kind() Kind  { return KindBranchPaths }
func (*Select) Kind() Kind       { return KindSelect }
func (*CaseList) Kind() Kind     { return KindCaseList }
func (*Case) Kind() Kind         { return KindCase }
func (*FuncReturn) Kind() Kind   { return KindFuncReturn }
func (*SubReturn) Kind() Kind    { return KindSubReturn }
func (*Goto) Kind() Kind         { return KindGoto }
func (*Loop) Kind() Kind         { return KindLoop }
func (*LoopWhile) Kind() Kind    { return KindLoopWhile }
func (*LoopUntil) Kind() Kind    { return KindLoopUntil }
func (*Break) Kind() Kind        { return KindBreak }
func (*UDTFieldList) Kind() Kind { return KindUDTFieldList }
func (n *BinaryOp) Kind() Kind   { return n.Op }
func (n *UnaryOp) Kind() Kind    { return n.Op }
func (*Literal) Kind() Kind      { return KindLiteral }
func (*Symbol) Kind() Kind       { return KindSymbol }
func (*ConstDecl) Kind() Kind    { return KindConstDecl }
func (*ConstRef) Kind() Kind     { return KindConstRef }
func (*VarDecl) Kind() Kind      { return KindVarDecl }
func (*VarRef) Kind() Kind       { return KindVarRef }
func (*ArrayDecl) Kind() Kind    { return KindArrayDecl }
func (*ArrayRef) Kind() Kind     { return KindArrayRef }
func (*UDTDecl) Kind() Kind      { return KindUDTDecl }
func (*UDTRef) Kind() Kind       { return KindUDTRef }
func (*FuncCall) Kind() Kind     { return KindFuncCall }
func (*FuncDecl) Kind() Kind     { return KindFuncDecl }
func (*SubCall) Kind() Kind      { return KindSubCall }
func (*Label) Kind() Kind        { return KindLabel }
func (*Keyword) Kind() Kind      { return KindKeyword }

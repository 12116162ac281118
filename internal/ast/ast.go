// Package ast defines the syntax tree produced by the parser. Nodes live in
// an arena owned by a Tree and refer to each other through NodeID handles;
// parent links are plain handles and never own anything.
package ast

import (
	"fmt"

	"github.com/odb-lang/odb-compiler/internal/lexer"
)

// NodeID is a handle into a Tree's arena. The zero value means "no node".
type NodeID int32

// NoNode is the absent child.
const NoNode NodeID = 0

// Source is the provenance shared by every node of one parse.
type Source struct {
	Filename string
	Text     []byte
}

// DataType is the value type carried by symbols and literals.
type DataType int

const (
	TypeNone DataType = iota
	TypeBoolean
	TypeInteger
	TypeFloat
	TypeString
	TypeUDT
)

var dataTypeNames = [...]string{
	TypeNone:    "none",
	TypeBoolean: "boolean",
	TypeInteger: "integer",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeUDT:     "udt",
}

func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// Scope says where a symbol lives.
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "local"
}

// Sym is the payload shared by every symbol node.
type Sym struct {
	Name     string
	Type     DataType
	Scope    Scope
	TypeName string // UDT name when Type == TypeUDT
}

// Node is implemented by every node variant. The concrete Go type
// determines the payload; Kind reports the node type for dispatch tables
// and dumps.
type Node interface {
	Kind() Kind
}

type entry struct {
	node   Node
	parent NodeID
	span   lexer.Span
	src    *Source
}

// Tree owns every node of one parse (or one whole program after fragments
// are appended).
type Tree struct {
	nodes []entry // index 0 is the NoNode sentinel
	root  NodeID
}

// NewTree returns an empty arena.
func NewTree() *Tree {
	return &Tree{nodes: make([]entry, 1, 64)}
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.nodes) - 1
}

// Root returns the tree's root node, or NoNode.
func (t *Tree) Root() NodeID {
	return t.root
}

// SetRoot marks id as the root. The root has no parent.
func (t *Tree) SetRoot(id NodeID) {
	t.mustExist(id)
	if p := t.nodes[id].parent; p != NoNode {
		panic(fmt.Sprintf("ast: root %d already has parent %d", id, p))
	}
	t.root = id
}

func (t *Tree) valid(id NodeID) bool {
	return id > NoNode && int(id) < len(t.nodes)
}

func (t *Tree) mustExist(id NodeID) {
	if !t.valid(id) {
		panic(fmt.Sprintf("ast: invalid node id %d", id))
	}
}

// Node returns the payload of id.
func (t *Tree) Node(id NodeID) Node {
	t.mustExist(id)
	return t.nodes[id].node
}

// Kind returns the node type of id.
func (t *Tree) Kind(id NodeID) Kind {
	return t.Node(id).Kind()
}

// Parent returns the parent handle of id, NoNode for the root or orphans.
func (t *Tree) Parent(id NodeID) NodeID {
	t.mustExist(id)
	return t.nodes[id].parent
}

// Span returns the source location of id.
func (t *Tree) Span(id NodeID) lexer.Span {
	t.mustExist(id)
	return t.nodes[id].span
}

// SetSpan replaces the location of id.
func (t *Tree) SetSpan(id NodeID, span lexer.Span) {
	t.mustExist(id)
	t.nodes[id].span = span
}

// Source returns the provenance of id, nil until SetSource has run.
func (t *Tree) Source(id NodeID) *Source {
	t.mustExist(id)
	return t.nodes[id].src
}

func (t *Tree) add(n Node, span lexer.Span) NodeID {
	t.nodes = append(t.nodes, entry{node: n, span: span})
	return NodeID(len(t.nodes) - 1)
}

// adopt links child under parent. A node may only ever have one parent.
func (t *Tree) adopt(parent, child NodeID) {
	if child == NoNode {
		return
	}
	t.mustExist(child)
	if p := t.nodes[child].parent; p != NoNode {
		panic(fmt.Sprintf("ast: node %d (%s) already owned by %d", child, t.Kind(child), p))
	}
	if child == t.root {
		panic(fmt.Sprintf("ast: cannot adopt root node %d", child))
	}
	t.nodes[child].parent = parent
}

// SymOf returns the symbol payload of a symbol node, or nil.
func (t *Tree) SymOf(id NodeID) *Sym {
	switch n := t.Node(id).(type) {
	case *Symbol:
		return &n.Sym
	case *ConstDecl:
		return &n.Sym
	case *ConstRef:
		return &n.Sym
	case *VarDecl:
		return &n.Sym
	case *VarRef:
		return &n.Sym
	case *ArrayDecl:
		return &n.Sym
	case *ArrayRef:
		return &n.Sym
	case *UDTDecl:
		return &n.Sym
	case *UDTRef:
		return &n.Sym
	case *FuncCall:
		return &n.Sym
	case *FuncDecl:
		return &n.Sym
	case *SubCall:
		return &n.Sym
	case *Label:
		return &n.Sym
	case *Keyword:
		return &n.Sym
	}
	return nil
}

// IsExpr reports whether id produces a value.
func (t *Tree) IsExpr(id NodeID) bool {
	switch n := t.Node(id).(type) {
	case *Literal, *BinaryOp, *UnaryOp, *ConstRef, *VarRef, *ArrayRef, *FuncCall:
		return true
	case *Keyword:
		return n.Sym.Type != TypeNone
	}
	return false
}

// CommaList flattens a right-associated comma tree into its operands in
// source order. A non-comma node yields itself; NoNode yields nothing.
func (t *Tree) CommaList(id NodeID) []NodeID {
	var out []NodeID
	for id != NoNode {
		op, ok := t.Node(id).(*BinaryOp)
		if !ok || op.Op != OpComma {
			return append(out, id)
		}
		out = append(out, op.Left)
		id = op.Right
	}
	return out
}

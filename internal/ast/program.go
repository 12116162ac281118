package ast

import (
	"fmt"
	"strings"

	"github.com/odb-lang/odb-compiler/internal/lexer"
)

// Program is a whole compilation unit: one Tree whose root Block holds the
// main statements interleaved with function definitions.
type Program struct {
	Tree *Tree
}

// NewProgram returns a program with an empty main block.
func NewProgram() *Program {
	t := NewTree()
	t.SetRoot(t.NewBlock(nil, lexer.Span{}))
	return &Program{Tree: t}
}

// Main returns the root block.
func (p *Program) Main() NodeID {
	return p.Tree.Root()
}

// AddFragment appends the statements of a successfully parsed fragment. On
// error the program is unchanged.
func (p *Program) AddFragment(frag *Tree) error {
	return p.Tree.AppendStmts(p.Main(), frag)
}

// MainStmts returns the top-level statements that are not function
// definitions, in source order.
func (p *Program) MainStmts() []NodeID {
	var out []NodeID
	for _, s := range p.stmts() {
		if p.Tree.Kind(s) != KindFuncDecl {
			out = append(out, s)
		}
	}
	return out
}

// Functions returns every function definition in source order.
func (p *Program) Functions() []NodeID {
	var out []NodeID
	for _, s := range p.stmts() {
		if p.Tree.Kind(s) == KindFuncDecl {
			out = append(out, s)
		}
	}
	return out
}

// Function looks up a definition by case-insensitive name.
func (p *Program) Function(name string) (*FuncDecl, NodeID, bool) {
	for _, id := range p.Functions() {
		fd := p.Tree.Node(id).(*FuncDecl)
		if strings.EqualFold(fd.Name, name) {
			return fd, id, true
		}
	}
	return nil, NoNode, false
}

func (p *Program) stmts() []NodeID {
	b, ok := p.Tree.Node(p.Main()).(*Block)
	if !ok {
		panic(fmt.Sprintf("ast: program root is %s, not Block", p.Tree.Kind(p.Main())))
	}
	return b.Stmts
}

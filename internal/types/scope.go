package types

import (
	"github.com/odb-lang/odb-compiler/internal/ast"
	"github.com/odb-lang/odb-compiler/internal/lexer"
)

// Symbol is a variable or array known to a scope.
type Symbol struct {
	Name     string
	Type     ast.DataType
	TypeName string
	Scope    ast.Scope
	Decl     ast.NodeID // NoNode while the name has only been used implicitly
	Span     lexer.Span

	// refs are the references seen before any declaration. They are
	// revisited when a declaration arrives.
	refs []ast.NodeID
}

// Scope holds the symbols of the main program or of one function body.
type Scope struct {
	Parent *Scope
	Vars   map[string]*Symbol
	Arrays map[string]*Symbol
	Labels map[string]ast.NodeID
}

// NewScope creates a new scope with an optional parent.
func NewScope(parent *Scope) *Scope {
	return &Scope{
		Parent: parent,
		Vars:   make(map[string]*Symbol),
		Arrays: make(map[string]*Symbol),
		Labels: make(map[string]ast.NodeID),
	}
}

// LookupVar finds a variable in this scope or any parent scope.
func (s *Scope) LookupVar(name string) *Symbol {
	if sym, ok := s.Vars[key(name)]; ok {
		return sym
	}
	if s.Parent != nil {
		return s.Parent.LookupVar(name)
	}
	return nil
}

// LookupArray finds an array in this scope or any parent scope.
func (s *Scope) LookupArray(name string) *Symbol {
	if sym, ok := s.Arrays[key(name)]; ok {
		return sym
	}
	if s.Parent != nil {
		return s.Parent.LookupArray(name)
	}
	return nil
}

// Package types resolves the provisional typing the parser leaves behind:
// references seen before their declaration, user-function return types and
// UDT field paths. It also rejects programs code generation cannot lower.
package types

import (
	"strings"

	"github.com/odb-lang/odb-compiler/internal/ast"
)

// Info is what the checker learned about a program. Code generation reads
// it instead of recomputing layouts and signatures.
type Info struct {
	Functions map[string]*Function
	UDTs      map[string]*UDT

	// Consts maps a constant's key to its value expression.
	Consts map[string]ast.NodeID

	// Dims holds the evaluated upper bounds of every ArrayDecl. An array
	// declared with bound n has n+1 elements along that dimension.
	Dims map[ast.NodeID][]int
}

func newInfo() *Info {
	return &Info{
		Functions: map[string]*Function{},
		UDTs:      map[string]*UDT{},
		Consts:    map[string]ast.NodeID{},
		Dims:      map[ast.NodeID][]int{},
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Function looks up a user function by case-insensitive name.
func (i *Info) Function(name string) (*Function, bool) {
	f, ok := i.Functions[key(name)]
	return f, ok
}

// UDT looks up a user-defined type by case-insensitive name.
func (i *Info) UDT(name string) (*UDT, bool) {
	u, ok := i.UDTs[key(name)]
	return u, ok
}

// Function is the resolved signature of a user function.
type Function struct {
	Name   string
	Decl   ast.NodeID
	Params []ast.Sym
	Return ast.DataType

	state checkState
	// types of every exitfunction value, checked against Return at the end
	exits []exitValue
}

type checkState int

const (
	unchecked checkState = iota
	checking
	checked
)

type exitValue struct {
	id  ast.NodeID
	typ ast.DataType
}

// UDT is the field layout of a user-defined type, in declaration order.
type UDT struct {
	Name   string
	Decl   ast.NodeID
	Fields []Field
}

type Field struct {
	Name     string
	Type     ast.DataType
	TypeName string
}

// Field returns the index and description of the named field.
func (u *UDT) Field(name string) (int, Field, bool) {
	for i, f := range u.Fields {
		if strings.EqualFold(f.Name, name) {
			return i, f, true
		}
	}
	return -1, Field{}, false
}

// IsNumeric reports whether values of t take part in arithmetic. Booleans
// count: comparisons feed straight into integer expressions.
func IsNumeric(t ast.DataType) bool {
	return t == ast.TypeBoolean || t == ast.TypeInteger || t == ast.TypeFloat
}

// Assignable reports whether a value of type from can be stored into a
// location of type to, converting between numeric types as needed.
func Assignable(to, from ast.DataType) bool {
	switch {
	case IsNumeric(to):
		return IsNumeric(from)
	case to == ast.TypeString:
		return from == ast.TypeString
	}
	return to == from
}

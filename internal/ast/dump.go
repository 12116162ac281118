package ast

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// label renders the one-line description used by both dump formats.
func (t *Tree) label(id NodeID) string {
	switch n := t.Node(id).(type) {
	case *Literal:
		switch n.Type {
		case TypeBoolean:
			return fmt.Sprintf("Literal %t", n.Bool)
		case TypeInteger:
			return fmt.Sprintf("Literal %d", n.Int)
		case TypeFloat:
			return "Literal " + strconv.FormatFloat(n.Float, 'g', -1, 64)
		case TypeString:
			return "Literal " + strconv.Quote(n.Str)
		}
	case *Goto:
		return "Goto " + n.Label
	case *VarRef:
		if len(n.Fields) > 0 {
			return fmt.Sprintf("VarRef %s.%s (%s)", n.Name, strings.Join(n.Fields, "."), n.Type)
		}
	}
	if sym := t.SymOf(id); sym != nil {
		return fmt.Sprintf("%s %s (%s %s)", t.Kind(id), sym.Name, sym.Scope, sym.Type)
	}
	return t.Kind(id).String()
}

// WriteDOT renders the tree under root as a Graphviz digraph.
func (t *Tree) WriteDOT(w io.Writer, root NodeID) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph ast {")
	fmt.Fprintln(bw, "  node [shape=box, fontname=\"monospace\"];")
	t.Walk(root, func(id NodeID) bool {
		s := t.Span(id)
		fmt.Fprintf(bw, "  n%d [label=%s];\n", id, strconv.Quote(fmt.Sprintf("%s\n%d:%d", t.label(id), s.Line, s.Column)))
		for _, c := range t.Children(id) {
			fmt.Fprintf(bw, "  n%d -> n%d;\n", id, c)
		}
		return true
	})
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

type jsonNode struct {
	Kind     string      `json:"kind"`
	Name     string      `json:"name,omitempty"`
	Type     string      `json:"type,omitempty"`
	Scope    string      `json:"scope,omitempty"`
	Value    any         `json:"value,omitempty"`
	Fields   []string    `json:"fields,omitempty"`
	Line     int         `json:"line"`
	Column   int         `json:"column"`
	Children []*jsonNode `json:"children,omitempty"`
}

func (t *Tree) toJSON(id NodeID) *jsonNode {
	s := t.Span(id)
	jn := &jsonNode{Kind: t.Kind(id).String(), Line: s.Line, Column: s.Column}
	if sym := t.SymOf(id); sym != nil {
		jn.Name = sym.Name
		jn.Type = sym.Type.String()
		jn.Scope = sym.Scope.String()
	}
	switch n := t.Node(id).(type) {
	case *Literal:
		jn.Type = n.Type.String()
		switch n.Type {
		case TypeBoolean:
			jn.Value = n.Bool
		case TypeInteger:
			jn.Value = n.Int
		case TypeFloat:
			jn.Value = n.Float
		case TypeString:
			jn.Value = n.Str
		}
	case *Goto:
		jn.Name = n.Label
	case *VarRef:
		jn.Fields = n.Fields
	}
	for _, c := range t.Children(id) {
		jn.Children = append(jn.Children, t.toJSON(c))
	}
	return jn
}

// WriteJSON renders the tree under root as indented nested JSON objects.
func (t *Tree) WriteJSON(w io.Writer, root NodeID) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t.toJSON(root))
}

package ast

import (
	"errors"
	"fmt"
	"slices"
)

// childRefs returns pointers to every child slot of n in source order. Slots
// holding NoNode are included so callers can rewrite them in place.
func childRefs(n Node) []*NodeID {
	switch n := n.(type) {
	case *Block:
		return sliceRefs(n.Stmts)
	case *Assignment:
		return []*NodeID{&n.Target, &n.Value}
	case *Branch:
		return []*NodeID{&n.Cond, &n.Paths}
	case *BranchPaths:
		return []*NodeID{&n.Then, &n.Else}
	case *Select:
		return []*NodeID{&n.Expr, &n.Cases}
	case *CaseList:
		return append(sliceRefs(n.Cases), &n.Default)
	case *Case:
		return []*NodeID{&n.Values, &n.Body}
	case *FuncReturn:
		return []*NodeID{&n.Value}
	case *Loop:
		return []*NodeID{&n.Body}
	case *LoopWhile:
		return []*NodeID{&n.Cond, &n.Body}
	case *LoopUntil:
		return []*NodeID{&n.Cond, &n.Body}
	case *UDTFieldList:
		return sliceRefs(n.Fields)
	case *BinaryOp:
		return []*NodeID{&n.Left, &n.Right}
	case *UnaryOp:
		return []*NodeID{&n.Operand}
	case *ConstDecl:
		return []*NodeID{&n.Value}
	case *VarDecl:
		return []*NodeID{&n.Init, &n.UDT}
	case *ArrayDecl:
		return []*NodeID{&n.Dims}
	case *ArrayRef:
		return []*NodeID{&n.Args}
	case *UDTDecl:
		return []*NodeID{&n.Fields}
	case *FuncCall:
		return []*NodeID{&n.Args}
	case *FuncDecl:
		return append(sliceRefs(n.Params), &n.Body, &n.Return)
	case *Keyword:
		return []*NodeID{&n.Args}
	}
	return nil
}

func sliceRefs(ids []NodeID) []*NodeID {
	refs := make([]*NodeID, len(ids))
	for i := range ids {
		refs[i] = &ids[i]
	}
	return refs
}

// Children returns the non-empty children of id in source order.
func (t *Tree) Children(id NodeID) []NodeID {
	var out []NodeID
	for _, ref := range childRefs(t.Node(id)) {
		if *ref != NoNode {
			out = append(out, *ref)
		}
	}
	return out
}

// Walk visits id and its descendants in pre-order. If fn returns false the
// children of that node are skipped.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if id == NoNode || !fn(id) {
		return
	}
	for _, c := range t.Children(id) {
		t.Walk(c, fn)
	}
}

// copyPayload returns a shallow copy of n with its own backing slices.
func copyPayload(n Node) Node {
	switch n := n.(type) {
	case *Block:
		c := *n
		c.Stmts = slices.Clone(n.Stmts)
		return &c
	case *Assignment:
		c := *n
		return &c
	case *Branch:
		c := *n
		return &c
	case *BranchPaths:
		c := *n
		return &c
	case *Select:
		c := *n
		return &c
	case *CaseList:
		c := *n
		c.Cases = slices.Clone(n.Cases)
		return &c
	case *Case:
		c := *n
		return &c
	case *FuncReturn:
		c := *n
		return &c
	case *SubReturn:
		return &SubReturn{}
	case *Goto:
		c := *n
		return &c
	case *Loop:
		c := *n
		return &c
	case *LoopWhile:
		c := *n
		return &c
	case *LoopUntil:
		c := *n
		return &c
	case *Break:
		return &Break{}
	case *UDTFieldList:
		c := *n
		c.Fields = slices.Clone(n.Fields)
		return &c
	case *BinaryOp:
		c := *n
		return &c
	case *UnaryOp:
		c := *n
		return &c
	case *Literal:
		c := *n
		return &c
	case *Symbol:
		c := *n
		return &c
	case *ConstDecl:
		c := *n
		return &c
	case *ConstRef:
		c := *n
		return &c
	case *VarDecl:
		c := *n
		return &c
	case *VarRef:
		c := *n
		c.Fields = slices.Clone(n.Fields)
		return &c
	case *ArrayDecl:
		c := *n
		return &c
	case *ArrayRef:
		c := *n
		return &c
	case *UDTDecl:
		c := *n
		return &c
	case *UDTRef:
		c := *n
		return &c
	case *FuncCall:
		c := *n
		return &c
	case *FuncDecl:
		c := *n
		c.Params = slices.Clone(n.Params)
		return &c
	case *SubCall:
		c := *n
		return &c
	case *Label:
		c := *n
		return &c
	case *Keyword:
		c := *n
		return &c
	}
	panic(fmt.Sprintf("ast: unknown node type %T", n))
}

// Clone deep-copies the subtree at id within t. The copy is unparented and
// shares no node with the original.
func (t *Tree) Clone(id NodeID) NodeID {
	if id == NoNode {
		return NoNode
	}
	return t.copyFrom(t, id)
}

// copyFrom copies the subtree at id of src into t. src may be t itself.
func (t *Tree) copyFrom(src *Tree, id NodeID) NodeID {
	e := src.nodes[id]
	n := copyPayload(e.node)
	for _, ref := range childRefs(n) {
		if *ref != NoNode {
			*ref = t.copyFrom(src, *ref)
		}
	}
	nid := t.add(n, e.span)
	t.nodes[nid].src = e.src
	for _, ref := range childRefs(n) {
		t.adopt(nid, *ref)
	}
	return nid
}

// Append copies the subtree rooted at id in src into t and returns its new
// handle, unparented. Only nodes reachable from id are copied. src is
// validated first; on error t is left untouched.
func (t *Tree) Append(src *Tree, id NodeID) (NodeID, error) {
	if id == NoNode {
		return NoNode, nil
	}
	if !src.valid(id) {
		return NoNode, fmt.Errorf("ast: append: invalid node id %d", id)
	}
	if err := src.checkSubtree(id, nil); err != nil {
		return NoNode, fmt.Errorf("ast: append: %w", err)
	}
	return t.copyFrom(src, id), nil
}

// AppendStmts copies the statements of the root block of src onto the end
// of block in t. Either every statement is appended or, on error, none.
func (t *Tree) AppendStmts(block NodeID, src *Tree) error {
	b, ok := t.Node(block).(*Block)
	if !ok {
		panic(fmt.Sprintf("ast: AppendStmts target %d is %s, not Block", block, t.Kind(block)))
	}
	root := src.Root()
	if root == NoNode {
		return nil
	}
	sb, ok := src.Node(root).(*Block)
	if !ok {
		return fmt.Errorf("ast: append: fragment root is %s, not Block", src.Kind(root))
	}
	if err := src.checkSubtree(root, nil); err != nil {
		return fmt.Errorf("ast: append: %w", err)
	}
	for _, s := range sb.Stmts {
		nid := t.copyFrom(src, s)
		t.adopt(block, nid)
		b.Stmts = append(b.Stmts, nid)
	}
	return nil
}

// SetSource attaches src to the root and every node reachable from it.
func (t *Tree) SetSource(src *Source) {
	t.Walk(t.root, func(id NodeID) bool {
		t.nodes[id].src = src
		return true
	})
}

var (
	ErrNoRoot    = errors.New("tree has no root")
	ErrShared    = errors.New("node reachable more than once")
	ErrOrphan    = errors.New("node not reachable from root")
	ErrBadParent = errors.New("parent link does not match owner")
)

// checkSubtree verifies that every node under id is reached exactly once and
// that parent links agree with ownership. seen may be nil.
func (t *Tree) checkSubtree(id NodeID, seen []bool) error {
	if seen == nil {
		seen = make([]bool, len(t.nodes))
	}
	var walk func(id, parent NodeID) error
	walk = func(id, parent NodeID) error {
		if !t.valid(id) {
			return fmt.Errorf("invalid child id %d under %d", id, parent)
		}
		if seen[id] {
			return fmt.Errorf("%w: %d (%s)", ErrShared, id, t.Kind(id))
		}
		seen[id] = true
		if parent != NoNode && t.nodes[id].parent != parent {
			return fmt.Errorf("%w: %d (%s) owned by %d, links to %d",
				ErrBadParent, id, t.Kind(id), parent, t.nodes[id].parent)
		}
		for _, c := range t.Children(id) {
			if err := walk(c, id); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(id, NoNode)
}

// Validate checks that the tree is strictly tree-shaped: every node in the
// arena is reachable from the root exactly once and parent links match.
func (t *Tree) Validate() error {
	if t.root == NoNode {
		return ErrNoRoot
	}
	if p := t.nodes[t.root].parent; p != NoNode {
		return fmt.Errorf("%w: root %d links to %d", ErrBadParent, t.root, p)
	}
	seen := make([]bool, len(t.nodes))
	if err := t.checkSubtree(t.root, seen); err != nil {
		return err
	}
	for id := 1; id < len(t.nodes); id++ {
		if !seen[id] {
			return fmt.Errorf("%w: %d (%s)", ErrOrphan, id, t.Kind(NodeID(id)))
		}
	}
	return nil
}

package syntax

import (
	"fmt"
	"strings"
)

// Node is one vertex of a concrete syntax tree. Named nodes carry a grammar
// type such as "thread_definition"; anonymous nodes are literal tokens whose
// type is their own text ("end", ":", "::").
type Node struct {
	kind    string
	named   bool
	missing bool
	field   string

	startByte  uint32
	endByte    uint32
	startPoint Point
	endPoint   Point

	parent   *Node
	children []*Node

	hasError bool
	changed  bool

	// lookahead is how many bytes past endByte the parser examined before
	// deciding where this node ends.
	lookahead uint32
}

func (n *Node) Type() string { return n.kind }
func (n *Node) IsNamed() bool { return n.named }
func (n *Node) IsMissing() bool { return n.missing }
func (n *Node) IsError() bool { return n.kind == TypeError }
func (n *Node) HasError() bool { return n.hasError }
func (n *Node) HasChanges() bool { return n.changed }
func (n *Node) StartByte() uint32 { return n.startByte }
func (n *Node) EndByte() uint32 { return n.endByte }
func (n *Node) StartPoint() Point { return n.startPoint }
func (n *Node) EndPoint() Point { return n.endPoint }
func (n *Node) Parent() *Node { return n.parent }
func (n *Node) ChildCount() int { return len(n.children) }
func (n *Node) FieldName() string { return n.field }
func (n *Node) Range() Range { return Range{Start: n.startPoint, End: n.endPoint} }

// Child returns the i-th child, named or anonymous.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns all children, named and anonymous.
func (n *Node) Children() []*Node { return n.children }

// NamedChildren returns the named children in source order.
func (n *Node) NamedChildren() []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.named {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildCount returns the number of named children.
func (n *Node) NamedChildCount() int {
	count := 0
	for _, c := range n.children {
		if c.named {
			count++
		}
	}
	return count
}

// ChildByFieldName returns the first child assigned to field, or nil.
func (n *Node) ChildByFieldName(field string) *Node {
	for _, c := range n.children {
		if c.field == field {
			return c
		}
	}
	return nil
}

// Content returns the source text covered by the node.
func (n *Node) Content(src []byte) string {
	if int(n.endByte) > len(src) || n.startByte > n.endByte {
		return ""
	}
	return string(src[n.startByte:n.endByte])
}

// DescendantForPoint returns the smallest node that contains p. When no child
// contains p, a child ending exactly at p is taken instead, so a cursor placed
// right after a word still selects it.
func (n *Node) DescendantForPoint(p Point) *Node {
	cur := n
	for {
		var next *Node
		for _, c := range cur.children {
			if c.startByte == c.endByte {
				continue
			}
			if !pointLess(p, c.startPoint) && pointLess(p, c.endPoint) {
				next = c
				break
			}
		}
		if next == nil {
			for _, c := range cur.children {
				if c.endPoint == p && c.startByte < c.endByte {
					next = c
				}
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Ancestor returns the nearest ancestor of the given type, or nil.
func (n *Node) Ancestor(kind string) *Node {
	for p := n.parent; p != nil; p = p.parent {
		if p.kind == kind {
			return p
		}
	}
	return nil
}

func pointLess(a, b Point) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column < b.Column
}

func newNode(kind string, children ...*Node) *Node {
	n := &Node{kind: kind, named: true}
	for _, c := range children {
		if c == nil {
			continue
		}
		n.children = append(n.children, c)
	}
	n.adopt()
	return n
}

func withField(field string, n *Node) *Node {
	if n != nil {
		n.field = field
	}
	return n
}

// adopt recomputes span and error state from the current children.
func (n *Node) adopt() {
	if len(n.children) == 0 {
		return
	}
	first, last := n.children[0], n.children[len(n.children)-1]
	n.startByte, n.startPoint = first.startByte, first.startPoint
	n.endByte, n.endPoint = last.endByte, last.endPoint
	n.hasError = n.kind == TypeError || n.missing
	for _, c := range n.children {
		c.parent = n
		if c.hasError {
			n.hasError = true
		}
	}
}

// clone deep-copies a subtree. The copy has no parent.
func (n *Node) clone() *Node {
	c := *n
	c.parent = nil
	if len(n.children) > 0 {
		c.children = make([]*Node, len(n.children))
		for i, child := range n.children {
			cc := child.clone()
			cc.parent = &c
			c.children[i] = cc
		}
	}
	return &c
}

// String renders the named structure of the subtree as an S-expression, in
// the format tree-sitter uses, e.g. (thread_definition name: (identifier)).
func (n *Node) String() string {
	var b strings.Builder
	n.writeSExpr(&b)
	return b.String()
}

func (n *Node) writeSExpr(b *strings.Builder) {
	if n.missing {
		fmt.Fprintf(b, "(MISSING %s)", n.kind)
		return
	}
	b.WriteString("(")
	b.WriteString(n.kind)
	for _, c := range n.children {
		if !c.named && !c.missing {
			continue
		}
		b.WriteString(" ")
		if c.field != "" {
			b.WriteString(c.field)
			b.WriteString(": ")
		}
		c.writeSExpr(b)
	}
	b.WriteString(")")
}

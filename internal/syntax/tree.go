package syntax

import "bytes"

// Tree is the result of one parse. A tree must be released exactly once.
// Handing a tree to Service.Reparse consumes it: it stays readable but can no
// longer be edited or reparsed.
type Tree struct {
	root     *Node
	source   []byte
	lang     *Language
	released bool
	consumed bool
	reused   int

	// origin records where each top-level node started in source, before
	// any edits moved it.
	origin map[*Node]uint32
}

func newTree(root *Node, source []byte, lang *Language) *Tree {
	t := &Tree{root: root, source: source, lang: lang, origin: make(map[*Node]uint32, len(root.children))}
	for _, c := range root.children {
		t.origin[c] = c.startByte
	}
	return t
}

// RootNode returns the source_file node, or nil once the tree is released.
func (t *Tree) RootNode() *Node {
	if t == nil || t.released {
		return nil
	}
	return t.root
}

// Source returns the text the tree was parsed from.
func (t *Tree) Source() []byte { return t.source }

func (t *Tree) Language() *Language { return t.lang }

func (t *Tree) Released() bool { return t.released }

func (t *Tree) Consumed() bool { return t.consumed }

// Release frees the tree. Calling it twice is an error.
func (t *Tree) Release() error {
	if t.released {
		return ErrTreeReleased
	}
	t.released = true
	t.origin = nil
	return nil
}

// Edit shifts node positions to account for a text change and marks every
// node the change touches. Edits apply in the order they are given.
func (t *Tree) Edit(e Edit) error {
	if t.released {
		return ErrTreeReleased
	}
	if t.consumed {
		return ErrTreeConsumed
	}
	editNode(t.root, e)
	return nil
}

func editNode(n *Node, e Edit) {
	if n.endByte+n.lookahead < e.StartIndex {
		return
	}
	if n.startByte > e.OldEndIndex {
		shiftNode(n, e)
		return
	}
	n.changed = true
	n.startByte, n.startPoint = editPosition(n.startByte, n.startPoint, e)
	n.endByte, n.endPoint = editPosition(n.endByte, n.endPoint, e)
	for _, c := range n.children {
		editNode(c, e)
	}
}

func shiftNode(n *Node, e Edit) {
	n.startByte, n.startPoint = editPosition(n.startByte, n.startPoint, e)
	n.endByte, n.endPoint = editPosition(n.endByte, n.endPoint, e)
	for _, c := range n.children {
		shiftNode(c, e)
	}
}

func editPosition(b uint32, p Point, e Edit) (uint32, Point) {
	switch {
	case b < e.StartIndex:
		return b, p
	case b >= e.OldEndIndex:
		nb := b - e.OldEndIndex + e.NewEndIndex
		if p.Row == e.OldEndPoint.Row {
			return nb, Point{Row: e.NewEndPoint.Row, Column: e.NewEndPoint.Column + p.Column - e.OldEndPoint.Column}
		}
		return nb, Point{Row: p.Row - e.OldEndPoint.Row + e.NewEndPoint.Row, Column: p.Column}
	case b > e.NewEndIndex:
		return e.NewEndIndex, e.NewEndPoint
	}
	return b, p
}

// reuseSet offers unchanged top-level subtrees of an edited tree to a fresh
// parse of the new text.
type reuseSet struct {
	old     *Tree
	text    []byte
	byStart map[uint32]*Node
	reused  int
}

func newReuseSet(old *Tree, text []byte) *reuseSet {
	rs := &reuseSet{old: old, text: text, byStart: make(map[uint32]*Node)}
	for _, c := range old.root.children {
		if c.changed || c.hasError || c.kind != TypeThreadDefinition {
			continue
		}
		rs.byStart[c.startByte] = c
	}
	return rs
}

// take returns a copy of the old subtree that starts at t, provided its text
// and the bytes the parser looked past it are unchanged.
func (rs *reuseSet) take(t token) *Node {
	n := rs.byStart[t.start]
	if n == nil || n.startPoint != t.startPoint {
		return nil
	}
	from, ok := rs.old.origin[n]
	if !ok {
		return nil
	}
	span := n.endByte - n.startByte + n.lookahead
	oldEnd := min(int(from+span), len(rs.old.source))
	newEnd := min(int(n.startByte+span), len(rs.text))
	if oldEnd-int(from) != newEnd-int(n.startByte) {
		return nil
	}
	if !bytes.Equal(rs.old.source[from:oldEnd], rs.text[n.startByte:newEnd]) {
		return nil
	}
	rs.reused++
	return n.clone()
}

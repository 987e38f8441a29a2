package syntax

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized = errors.New("syntax: parser not initialized")
	ErrTreeReleased   = errors.New("syntax: tree already released")
	ErrTreeConsumed   = errors.New("syntax: tree consumed by reparse")
)

// ErrorNode describes one ERROR or MISSING node found in a tree.
type ErrorNode struct {
	Kind      string // "ERROR" or "MISSING"
	Message   string
	Start     Point
	End       Point
	StartByte uint32
	EndByte   uint32
}

// CollectErrors walks the tree once and returns its error nodes in document
// order. Subtrees without errors are skipped.
func CollectErrors(t *Tree) []ErrorNode {
	root := t.RootNode()
	if root == nil || !root.hasError {
		return nil
	}
	var out []ErrorNode
	root.Walk(func(n *Node) bool {
		if !n.hasError {
			return false
		}
		switch {
		case n.missing:
			out = append(out, ErrorNode{
				Kind:      "MISSING",
				Message:   fmt.Sprintf("missing %q", n.kind),
				Start:     n.startPoint,
				End:       n.endPoint,
				StartByte: n.startByte,
				EndByte:   n.endByte,
			})
			return false
		case n.kind == TypeError:
			out = append(out, ErrorNode{
				Kind:      TypeError,
				Message:   "syntax error",
				Start:     n.startPoint,
				End:       n.endPoint,
				StartByte: n.startByte,
				EndByte:   n.endByte,
			})
			return false
		}
		return true
	})
	return out
}

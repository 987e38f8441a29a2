// Package query compiles and runs tree-sitter style S-expression patterns
// against syntax trees.
//
// Supported syntax: (node_type ...) patterns with nested children,
// field: constraints, "anonymous" tokens, [alternations], the (_) and _
// wildcards, @captures, and the #eq?, #not-eq?, #match?, #not-match? and
// #any-of? predicates. Lines starting with ';' are comments.
package query

import (
	"fmt"
	"regexp"

	"github.com/jward/morpheus/internal/syntax"
)

// Query is a compiled set of patterns.
type Query struct {
	patterns []*pattern
	captures []string
}

type pattern struct {
	root       *step
	predicates []predicate
}

type step struct {
	kind     string // named node type; empty for wildcards and tokens
	text     string // anonymous token literal
	wildcard bool
	named    bool // wildcard only matches named nodes
	alts     []*step
	field    string
	capture  int
	children []*step
}

type predicate struct {
	op      string
	capture int
	other   int // capture compared against, or -1
	values  []string
	re      *regexp.Regexp
}

// Capture is one captured node within a match.
type Capture struct {
	Name string
	Node *syntax.Node
}

// Match is one successful pattern match.
type Match struct {
	Pattern  int
	Captures []Capture
}

// Node returns the first node captured under name, or nil.
func (m Match) Node(name string) *syntax.Node {
	for _, c := range m.Captures {
		if c.Name == name {
			return c.Node
		}
	}
	return nil
}

// New compiles source against lang. Unknown node types, fields and tokens are
// rejected.
func New(source string, lang *syntax.Language) (*Query, error) {
	p := &queryParser{input: source, lang: lang, q: &Query{}}
	if err := p.parse(); err != nil {
		return nil, err
	}
	if len(p.q.patterns) == 0 {
		return nil, fmt.Errorf("query: no patterns")
	}
	return p.q, nil
}

// PatternCount returns the number of top-level patterns.
func (q *Query) PatternCount() int { return len(q.patterns) }

// CaptureNames returns the capture names in first-use order.
func (q *Query) CaptureNames() []string { return q.captures }

// Matches runs the query over the subtree rooted at root. Matches come back in
// document order: a pre-order walk, trying every pattern at each node. A
// pattern whose child steps fit a node's children in more than one way
// yields one match per fit.
func (q *Query) Matches(root *syntax.Node, src []byte) []Match {
	if root == nil {
		return nil
	}
	var out []Match
	root.Walk(func(n *syntax.Node) bool {
		for i, pat := range q.patterns {
			for _, caps := range q.matchStep(pat.root, n) {
				if q.checkPredicates(pat, caps, src) {
					out = append(out, Match{Pattern: i, Captures: caps})
				}
			}
		}
		return true
	})
	return out
}

// matchStep returns every way s matches n, each as the captures it binds.
func (q *Query) matchStep(s *step, n *syntax.Node) [][]Capture {
	if !nodeMatches(s, n) {
		return nil
	}
	var self []Capture
	if s.capture >= 0 {
		self = []Capture{{Name: q.captures[s.capture], Node: n}}
	}
	tails := q.matchChildren(s.children, n, 0)
	out := make([][]Capture, 0, len(tails))
	for _, t := range tails {
		out = append(out, concat(self, t))
	}
	return out
}

// matchChildren assigns child steps to children of n. Fielded steps look up
// their field; unfielded steps match siblings in order, starting at from.
func (q *Query) matchChildren(steps []*step, n *syntax.Node, from int) [][]Capture {
	if len(steps) == 0 {
		return [][]Capture{nil}
	}
	s, rest := steps[0], steps[1:]
	var out [][]Capture
	extend := func(heads [][]Capture, next int) {
		if len(heads) == 0 {
			return
		}
		tails := q.matchChildren(rest, n, next)
		for _, h := range heads {
			for _, t := range tails {
				out = append(out, concat(h, t))
			}
		}
	}
	if s.field != "" {
		if child := n.ChildByFieldName(s.field); child != nil {
			extend(q.matchStep(s, child), from)
		}
		return out
	}
	for i := from; i < n.ChildCount(); i++ {
		extend(q.matchStep(s, n.Child(i)), i+1)
	}
	return out
}

func concat(a, b []Capture) []Capture {
	out := make([]Capture, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

func nodeMatches(s *step, n *syntax.Node) bool {
	switch {
	case len(s.alts) > 0:
		for _, alt := range s.alts {
			if nodeMatches(alt, n) {
				return true
			}
		}
		return false
	case s.text != "":
		return !n.IsNamed() && n.Type() == s.text
	case s.wildcard:
		return !s.named || n.IsNamed()
	}
	return n.IsNamed() && n.Type() == s.kind
}

func (q *Query) checkPredicates(pat *pattern, caps []Capture, src []byte) bool {
	for _, pr := range pat.predicates {
		text, ok := captureText(q.captures[pr.capture], caps, src)
		if !ok {
			return false
		}
		var want bool
		switch pr.op {
		case "eq?", "not-eq?":
			other := ""
			if pr.other >= 0 {
				if other, ok = captureText(q.captures[pr.other], caps, src); !ok {
					return false
				}
			} else {
				other = pr.values[0]
			}
			want = text == other
		case "match?", "not-match?":
			want = pr.re.MatchString(text)
		case "any-of?":
			for _, v := range pr.values {
				if text == v {
					want = true
					break
				}
			}
		}
		if pr.op == "not-eq?" || pr.op == "not-match?" {
			want = !want
		}
		if !want {
			return false
		}
	}
	return true
}

func captureText(name string, caps []Capture, src []byte) (string, bool) {
	for _, c := range caps {
		if c.Name == name {
			return c.Node.Content(src), true
		}
	}
	return "", false
}

package facts

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jward/morpheus/internal/query"
	"github.com/jward/morpheus/internal/syntax"
	"github.com/jward/morpheus/queries"
)

type compiled struct {
	threads     *query.Query
	labels      *query.Query
	variables   *query.Query
	uses        *query.Query
	calls       *query.Query
	gotos       *query.Query
	identifiers *query.Query
}

// Structural extracts facts by running the embedded queries over a tree.
type Structural struct {
	q atomic.Pointer[compiled]
}

func NewStructural() *Structural { return &Structural{} }

// Load compiles the embedded queries against lang. It has the signature of a
// syntax.InitHook so the parse service compiles them during Init.
func (s *Structural) Load(_ context.Context, lang *syntax.Language) error {
	c := &compiled{}
	targets := []struct {
		file string
		dst  **query.Query
	}{
		{queries.Threads, &c.threads},
		{queries.Labels, &c.labels},
		{queries.Variables, &c.variables},
		{queries.Uses, &c.uses},
		{queries.Calls, &c.calls},
		{queries.Gotos, &c.gotos},
		{queries.Identifiers, &c.identifiers},
	}
	for _, t := range targets {
		src, err := queries.FS.ReadFile(t.file)
		if err != nil {
			return fmt.Errorf("facts: read %s: %w", t.file, err)
		}
		q, err := query.New(string(src), lang)
		if err != nil {
			return fmt.Errorf("facts: compile %s: %w", t.file, err)
		}
		*t.dst = q
	}
	s.q.Store(c)
	log.Debugf("compiled %d queries", len(targets))
	return nil
}

// Loaded reports whether Load has succeeded.
func (s *Structural) Loaded() bool { return s.q.Load() != nil }

func (s *Structural) prepare(in Input) (*compiled, *syntax.Node, error) {
	c := s.q.Load()
	if c == nil {
		return nil, nil, ErrNotLoaded
	}
	if in.Tree == nil {
		return nil, nil, ErrNoTree
	}
	root := in.Tree.RootNode()
	if root == nil {
		return nil, nil, fmt.Errorf("facts: %s: %w", in.URI, syntax.ErrTreeReleased)
	}
	return c, root, nil
}

func (s *Structural) Threads(in Input) ([]Thread, error) {
	c, root, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	src := in.Tree.Source()
	var out []Thread
	for _, m := range c.threads.Matches(root, src) {
		def, name := m.Node("thread"), m.Node("thread.name")
		t := Thread{
			Name:      name.Content(src),
			URI:       in.URI,
			Range:     def.Range(),
			NameRange: name.Range(),
			BodyRange: m.Node("thread.body").Range(),
		}
		if params := def.ChildByFieldName(syntax.FieldParameters); params != nil {
			for _, p := range params.NamedChildren() {
				if !p.IsError() {
					t.Params = append(t.Params, p.Content(src))
				}
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Structural) Labels(in Input) ([]Label, error) {
	c, root, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	src := in.Tree.Source()
	var out []Label
	for _, m := range c.labels.Matches(root, src) {
		def, name := m.Node("label"), m.Node("label.name")
		thread, ok := threadName(def, src)
		if !ok {
			continue
		}
		out = append(out, Label{
			Name:      name.Content(src),
			Thread:    thread,
			URI:       in.URI,
			Range:     def.Range(),
			NameRange: name.Range(),
		})
	}
	return out, nil
}

func (s *Structural) Variables(in Input) ([]Variable, error) {
	c, root, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	src := in.Tree.Source()
	seen := make(map[string]bool)
	var out []Variable
	for _, m := range c.variables.Matches(root, src) {
		v, name := m.Node("variable"), m.Node("variable.name")
		if name.IsMissing() {
			continue
		}
		thread, _ := threadName(v, src)
		scope := strings.ToLower(m.Node("variable.scope").Content(src))
		key := firstWriteKey(scope, name.Content(src), thread)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Variable{
			Scope:     scope,
			Name:      name.Content(src),
			Thread:    thread,
			Param:     v.Parent() != nil && v.Parent().Type() == syntax.TypeParameterList,
			URI:       in.URI,
			Range:     v.Range(),
			NameRange: name.Range(),
		})
	}
	return out, nil
}

func (s *Structural) Uses(in Input) ([]VariableUse, error) {
	c, root, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	src := in.Tree.Source()
	var out []VariableUse
	for _, m := range c.uses.Matches(root, src) {
		v, name := m.Node("use"), m.Node("use.name")
		if name.IsMissing() {
			continue
		}
		thread, _ := threadName(v, src)
		out = append(out, VariableUse{
			Scope:     strings.ToLower(m.Node("use.scope").Content(src)),
			Name:      name.Content(src),
			Thread:    thread,
			Write:     isWrite(v),
			URI:       in.URI,
			Range:     v.Range(),
			NameRange: name.Range(),
		})
	}
	return out, nil
}

func (s *Structural) Calls(in Input) ([]Call, error) {
	c, root, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	src := in.Tree.Source()
	var out []Call
	for _, m := range c.calls.Matches(root, src) {
		node, target := m.Node("call"), m.Node("call.target")
		if target.IsMissing() {
			continue
		}
		call := Call{
			Keyword:     m.Node("call.keyword").Type(),
			Target:      target.Content(src),
			URI:         in.URI,
			Range:       node.Range(),
			TargetRange: target.Range(),
		}
		call.Thread, _ = threadName(node, src)
		switch target.Type() {
		case syntax.TypeIdentifier:
		case syntax.TypeScriptPath:
			call.Path, call.PathRange = call.Target, target.Range()
		case syntax.TypePathLabel:
			if p := target.ChildByFieldName(syntax.FieldPath); p != nil && !p.IsMissing() {
				call.Path, call.PathRange = p.Content(src), p.Range()
			}
			if l := target.ChildByFieldName(syntax.FieldLabel); l != nil && !l.IsMissing() {
				call.Label, call.LabelRange = l.Content(src), l.Range()
			}
		default:
			continue
		}
		out = append(out, call)
	}
	return out, nil
}

func (s *Structural) Gotos(in Input) ([]Goto, error) {
	c, root, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	src := in.Tree.Source()
	var out []Goto
	for _, m := range c.gotos.Matches(root, src) {
		node, label := m.Node("goto"), m.Node("goto.label")
		if label.IsMissing() {
			continue
		}
		thread, _ := threadName(node, src)
		out = append(out, Goto{
			Label:      label.Content(src),
			Thread:     thread,
			URI:        in.URI,
			Range:      node.Range(),
			LabelRange: label.Range(),
		})
	}
	return out, nil
}

// Identifiers returns identifier nodes whose text equals name. Comments and
// strings never contain identifier nodes.
func (s *Structural) Identifiers(in Input, name string) ([]syntax.Range, error) {
	c, root, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	src := in.Tree.Source()
	var out []syntax.Range
	for _, m := range c.identifiers.Matches(root, src) {
		n := m.Node("identifier")
		if !n.IsMissing() && strings.EqualFold(n.Content(src), name) {
			out = append(out, n.Range())
		}
	}
	return out, nil
}

// FindContainingThread returns the thread definition enclosing the given
// position, or nil when the position lies outside every thread.
func FindContainingThread(tree *syntax.Tree, row, col uint32) *syntax.Node {
	root := tree.RootNode()
	if root == nil {
		return nil
	}
	n := root.DescendantForPoint(syntax.Point{Row: row, Column: col})
	if n.Type() == syntax.TypeThreadDefinition {
		return n
	}
	return n.Ancestor(syntax.TypeThreadDefinition)
}

// ThreadName returns the name of a thread_definition node.
func ThreadName(def *syntax.Node, src []byte) string {
	if def == nil {
		return ""
	}
	if name := def.ChildByFieldName(syntax.FieldName); name != nil {
		return name.Content(src)
	}
	return ""
}

func threadName(n *syntax.Node, src []byte) (string, bool) {
	def := n.Ancestor(syntax.TypeThreadDefinition)
	if def == nil {
		return "", false
	}
	return ThreadName(def, src), true
}

// isWrite reports whether a variable occurrence is assigned to or declared
// as a parameter. Subscripted writes ("local.a[1] = 2") count.
func isWrite(n *syntax.Node) bool {
	for {
		p := n.Parent()
		if p == nil {
			return false
		}
		switch p.Type() {
		case syntax.TypeParameterList:
			return true
		case syntax.TypeAssignmentStatement:
			return n.FieldName() == syntax.FieldLeft
		case syntax.TypeSubscriptExpression:
			if n.FieldName() != syntax.FieldObject {
				return false
			}
			n = p
			continue
		}
		return false
	}
}

package resolve

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/index"
	"github.com/jward/morpheus/internal/syntax"
)

// cursor is what a position points at.
type cursor struct {
	uri       string
	point     syntax.Point
	word      string // identifier under the cursor; empty on a bare script path
	wordRange syntax.Range
	thread    string // enclosing thread

	scope string // variable scope, lower case
	path  string // script path of a cross-file reference
	label string // label of a cross-file reference

	gotoTarget bool
	labelDef   bool
	callTarget bool
	threadDef  bool
}

func (c cursor) key() string {
	if c.scope != "" {
		return facts.VariableKey(c.scope, c.word)
	}
	return strings.ToLower(c.word)
}

// cursorAt classifies the position. It reports false when the position is
// not on an identifier or a script path.
func (r *Resolver) cursorAt(uri string, pos protocol.Position) (cursor, bool) {
	src, ok := r.source(uri)
	if !ok {
		return cursor{}, false
	}
	pt := src.lines.Point(pos)
	if src.tree != nil && src.tree.RootNode() != nil {
		return treeCursor(src, pt)
	}
	var threads []index.Symbol
	if doc, ok := r.index.Document(uri); ok {
		for _, s := range doc.Symbols {
			if s.Kind == index.KindThread {
				threads = append(threads, s)
			}
		}
	}
	return textCursor(src, pt, threads)
}

func treeCursor(src source, pt syntax.Point) (cursor, bool) {
	n := src.tree.RootNode().DescendantForPoint(pt)
	if n == nil || n.IsMissing() {
		return cursor{}, false
	}
	c := cursor{uri: src.uri, point: pt, wordRange: n.Range()}
	c.thread = facts.ThreadName(facts.FindContainingThread(src.tree, pt.Row, pt.Column), src.text)
	p := n.Parent()

	switch n.Type() {
	case syntax.TypeScriptPath:
		c.path = n.Content(src.text)
		if p != nil && p.Type() == syntax.TypePathLabel {
			if l := p.ChildByFieldName(syntax.FieldLabel); l != nil && !l.IsMissing() {
				c.label = l.Content(src.text)
			}
		}
		return c, true
	case syntax.TypeIdentifier:
		c.word = n.Content(src.text)
	default:
		return cursor{}, false
	}
	if p == nil {
		return c, true
	}

	switch p.Type() {
	case syntax.TypeGotoStatement:
		c.gotoTarget = true
	case syntax.TypeLabelDefinition:
		c.labelDef = true
	case syntax.TypeThreadDefinition:
		c.threadDef = n.FieldName() == syntax.FieldName
	case syntax.TypeScopedVariable:
		if s := p.ChildByFieldName(syntax.FieldScope); s != nil && facts.IsVariableScope(s.Content(src.text)) {
			c.scope = strings.ToLower(s.Content(src.text))
		}
	case syntax.TypeMemberExpression:
		obj := p.ChildByFieldName(syntax.FieldObject)
		if n.FieldName() == syntax.FieldProperty && obj != nil && obj.Type() == syntax.TypeIdentifier &&
			facts.IsVariableScope(obj.Content(src.text)) {
			c.scope = strings.ToLower(obj.Content(src.text))
		}
	case syntax.TypePathLabel:
		if path := p.ChildByFieldName(syntax.FieldPath); path != nil {
			c.path = path.Content(src.text)
			c.label = c.word
		}
	case syntax.TypeCallStatement, syntax.TypeCallExpression:
		c.callTarget = n.FieldName() == syntax.FieldTarget
	}
	return c, true
}

// textCursor classifies the position from the line text alone.
func textCursor(src source, pt syntax.Point, threads []index.Symbol) (cursor, bool) {
	line := lineAt(src.text, pt.Row)
	col := min(int(pt.Column), len(line))

	// Script paths first: "global/util.scr" must not read as "util" "." "scr".
	ps, pe := col, col
	for ps > 0 && isPathChar(line[ps-1]) {
		ps--
	}
	for pe < len(line) && isPathChar(line[pe]) {
		pe++
	}
	if tok := line[ps:pe]; ps < pe && (strings.ContainsAny(tok, "/\\") || strings.HasSuffix(strings.ToLower(tok), ".scr")) {
		c := cursor{uri: src.uri, point: pt, path: tok, wordRange: span(pt.Row, ps, pe)}
		if rest := line[pe:]; strings.HasPrefix(rest, "::") {
			c.label = rest[2 : 2+identLen(rest[2:])]
		}
		c.thread = enclosing(threads, pt)
		return c, true
	}

	start, end := col, col
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	for end < len(line) && isIdentChar(line[end]) {
		end++
	}
	if start == end || isDigit(line[start]) {
		return cursor{}, false
	}
	c := cursor{
		uri:       src.uri,
		point:     pt,
		word:      line[start:end],
		wordRange: span(pt.Row, start, end),
		thread:    enclosing(threads, pt),
	}
	before, after := line[:start], line[end:]

	switch {
	case strings.HasSuffix(before, "::"):
		head := before[:len(before)-2]
		i := len(head)
		for i > 0 && isPathChar(head[i-1]) {
			i--
		}
		c.path, c.label = head[i:], c.word
	case strings.HasSuffix(before, "."):
		head := before[:len(before)-1]
		i := len(head)
		for i > 0 && isIdentChar(head[i-1]) {
			i--
		}
		if facts.IsVariableScope(head[i:]) {
			c.scope = strings.ToLower(head[i:])
		}
	default:
		fields := strings.Fields(before)
		prev := ""
		if len(fields) > 0 {
			prev = strings.ToLower(fields[len(fields)-1])
		}
		switch {
		case prev == "goto":
			c.gotoTarget = true
		case syntax.CallKeywords[prev]:
			c.callTarget = true
		case len(fields) == 0:
			for _, t := range threads {
				if t.NameRange.Start == c.wordRange.Start {
					c.threadDef = true
				}
			}
			rest := strings.TrimLeft(after, " \t")
			if !c.threadDef && strings.HasPrefix(rest, ":") && !strings.HasPrefix(rest, "::") && c.thread != "" {
				c.labelDef = true
			}
		}
	}
	return c, true
}

// enclosing returns the name of the thread whose range holds pt. A thread
// ending exactly at pt still holds it.
func enclosing(threads []index.Symbol, pt syntax.Point) string {
	for _, t := range threads {
		if t.Range.Contains(pt) || t.Range.End == pt {
			return t.Name
		}
	}
	return ""
}

func lineAt(text []byte, row uint32) string {
	var r uint32
	start := 0
	for i, b := range text {
		if b != '\n' {
			continue
		}
		if r == row {
			return strings.TrimSuffix(string(text[start:i]), "\r")
		}
		r++
		start = i + 1
	}
	if r == row {
		return strings.TrimSuffix(string(text[start:]), "\r")
	}
	return ""
}

func span(row uint32, start, end int) syntax.Range {
	return syntax.Range{
		Start: syntax.Point{Row: row, Column: uint32(start)},
		End:   syntax.Point{Row: row, Column: uint32(end)},
	}
}

func identLen(s string) int {
	n := 0
	for n < len(s) && isIdentChar(s[n]) {
		n++
	}
	return n
}

func isIdentChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isPathChar(c byte) bool {
	return isIdentChar(c) || c == '/' || c == '\\' || c == '.' || c == '-'
}

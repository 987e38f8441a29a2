package facts

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/jward/morpheus/internal/syntax"
)

var (
	headerRe   = regexp.MustCompile(`^[ \t]*([A-Za-z_][A-Za-z0-9_]*)((?:[ \t]+[^\s:]+)*)[ \t]*:[ \t]*(?://.*)?$`)
	endRe      = regexp.MustCompile(`^[ \t]*(?i:end)\b`)
	scopedRe   = regexp.MustCompile(`\b((?i:local|level|game|group))\.([A-Za-z_][A-Za-z0-9_]*)`)
	callRe     = regexp.MustCompile(`\b((?i:thread|waitthread|exec|waitexec))[ \t]+([A-Za-z0-9_./\\-]*)(?:::([A-Za-z_][A-Za-z0-9_]*))?`)
	gotoRe     = regexp.MustCompile(`\b(?i:goto)[ \t]+([A-Za-z_][A-Za-z0-9_]*)`)
	identRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	localParam = regexp.MustCompile(`^(local)\.([A-Za-z_][A-Za-z0-9_]*)$`)
)

// Textual extracts facts line by line with regular expressions. It needs no
// tree, so it keeps answering when parsing fails. It cannot tell comments and
// strings from code.
type Textual struct{}

func NewTextual() *Textual { return &Textual{} }

// line is one source line with the thread that encloses it.
type line struct {
	row    uint32
	text   string
	thread string
	inside bool
	header bool
}

type textScan struct {
	threads []Thread
	labels  []Label
	lines   []line
}

// scan splits text into lines and tracks thread boundaries the way the parser
// does: "name params:" opens a thread, a bare "name:" inside a thread is a
// label, "end" outside braces closes the thread.
func scan(in Input) *textScan {
	s := &textScan{}
	cur := -1
	depth := 0
	closeAt := func(p syntax.Point) {
		if cur >= 0 {
			s.threads[cur].Range.End = p
			s.threads[cur].BodyRange.End = p
			cur = -1
		}
	}
	raw := bytes.Split(in.Text, []byte("\n"))
	for i, b := range raw {
		row := uint32(i)
		text := strings.TrimSuffix(string(b), "\r")
		if m := headerRe.FindStringSubmatchIndex(text); m != nil && !syntax.IsKeyword(strings.ToLower(text[m[2]:m[3]])) {
			params := strings.Fields(text[m[4]:m[5]])
			if len(params) == 0 {
				params = nil
			}
			name := text[m[2]:m[3]]
			nameRange := syntax.Range{
				Start: syntax.Point{Row: row, Column: uint32(m[2])},
				End:   syntax.Point{Row: row, Column: uint32(m[3])},
			}
			switch {
			case cur >= 0 && len(params) == 0:
				s.labels = append(s.labels, Label{
					Name:      name,
					Thread:    s.threads[cur].Name,
					URI:       in.URI,
					Range:     syntax.Range{Start: nameRange.Start, End: syntax.Point{Row: row, Column: uint32(strings.IndexByte(text[m[3]:], ':') + m[3] + 1)}},
					NameRange: nameRange,
				})
				s.lines = append(s.lines, line{row: row, text: text, thread: s.threads[cur].Name, inside: true})
				continue
			case cur >= 0:
				closeAt(syntax.Point{Row: row, Column: 0})
			}
			s.threads = append(s.threads, Thread{
				Name:      name,
				Params:    params,
				URI:       in.URI,
				Range:     syntax.Range{Start: nameRange.Start, End: syntax.Point{Row: row, Column: uint32(len(text))}},
				NameRange: nameRange,
				BodyRange: syntax.Range{Start: syntax.Point{Row: row + 1}, End: syntax.Point{Row: row + 1}},
			})
			cur = len(s.threads) - 1
			depth = 0
			s.lines = append(s.lines, line{row: row, text: text, thread: name, inside: true, header: true})
			continue
		}
		if cur < 0 {
			s.lines = append(s.lines, line{row: row, text: text})
			continue
		}
		s.lines = append(s.lines, line{row: row, text: text, thread: s.threads[cur].Name, inside: true})
		if depth == 0 {
			if loc := endRe.FindStringIndex(text); loc != nil {
				closeAt(syntax.Point{Row: row, Column: uint32(loc[1])})
				continue
			}
		}
		depth += strings.Count(text, "{") - strings.Count(text, "}")
		if depth < 0 {
			depth = 0
		}
	}
	if cur >= 0 {
		last := uint32(len(raw) - 1)
		closeAt(syntax.Point{Row: last, Column: uint32(len(strings.TrimSuffix(string(raw[last]), "\r")))})
	}
	return s
}

func (x *Textual) Threads(in Input) ([]Thread, error) { return scan(in).threads, nil }

func (x *Textual) Labels(in Input) ([]Label, error) { return scan(in).labels, nil }

func (x *Textual) Variables(in Input) ([]Variable, error) {
	seen := make(map[string]bool)
	var out []Variable
	for _, u := range textUses(scan(in)) {
		if !u.Write || (u.header && !u.param) {
			continue
		}
		key := firstWriteKey(u.Scope, u.Name, u.Thread)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Variable{
			Scope:     u.Scope,
			Name:      u.Name,
			Thread:    u.Thread,
			Param:     u.param,
			URI:       in.URI,
			Range:     u.Range,
			NameRange: u.NameRange,
		})
	}
	return out, nil
}

func (x *Textual) Uses(in Input) ([]VariableUse, error) {
	uses := textUses(scan(in))
	out := make([]VariableUse, 0, len(uses))
	for _, u := range uses {
		u.URI = in.URI
		out = append(out, u.VariableUse)
	}
	return out, nil
}

type textUse struct {
	VariableUse
	header bool
	param  bool
}

// textUses finds scoped variable occurrences inside threads. Every variable
// on a thread header is a write; only thread-local ones are parameters.
func textUses(s *textScan) []textUse {
	var out []textUse
	for _, l := range s.lines {
		if !l.inside {
			continue
		}
		for _, m := range scopedRe.FindAllStringSubmatchIndex(l.text, -1) {
			if m[0] > 0 && (l.text[m[0]-1] == '.' || l.text[m[0]-1] == '$') {
				continue
			}
			u := textUse{header: l.header}
			u.Scope = strings.ToLower(l.text[m[2]:m[3]])
			u.Name = l.text[m[4]:m[5]]
			u.Thread = l.thread
			u.Range = syntax.Range{
				Start: syntax.Point{Row: l.row, Column: uint32(m[0])},
				End:   syntax.Point{Row: l.row, Column: uint32(m[1])},
			}
			u.NameRange = syntax.Range{
				Start: syntax.Point{Row: l.row, Column: uint32(m[4])},
				End:   syntax.Point{Row: l.row, Column: uint32(m[5])},
			}
			if l.header {
				u.Write = true
				u.param = localParam.MatchString(l.text[m[0]:m[1]])
			} else {
				u.Write = assignedAt(l.text, m[1])
			}
			out = append(out, u)
		}
	}
	return out
}

func (x *Textual) Calls(in Input) ([]Call, error) {
	s := scan(in)
	var out []Call
	for _, l := range s.lines {
		if !l.inside {
			continue
		}
		for _, m := range callRe.FindAllStringSubmatchIndex(l.text, -1) {
			if m[0] > 0 && l.text[m[0]-1] == '.' {
				continue
			}
			path, hasLabel := l.text[m[4]:m[5]], m[6] >= 0
			if path == "" && !hasLabel {
				continue
			}
			pt := func(col int) syntax.Point { return syntax.Point{Row: l.row, Column: uint32(col)} }
			c := Call{
				Keyword:     strings.ToLower(l.text[m[2]:m[3]]),
				Target:      l.text[m[4]:m[1]],
				Thread:      l.thread,
				URI:         in.URI,
				Range:       syntax.Range{Start: pt(m[0]), End: pt(m[1])},
				TargetRange: syntax.Range{Start: pt(m[4]), End: pt(m[1])},
			}
			switch {
			case hasLabel:
				if path != "" {
					c.Path, c.PathRange = path, syntax.Range{Start: pt(m[4]), End: pt(m[5])}
				}
				c.Label, c.LabelRange = l.text[m[6]:m[7]], syntax.Range{Start: pt(m[6]), End: pt(m[7])}
			case isPathLike(path):
				c.Path, c.PathRange = path, c.TargetRange
			case !identRe.MatchString(path) || syntax.IsKeyword(path):
				continue
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (x *Textual) Gotos(in Input) ([]Goto, error) {
	s := scan(in)
	var out []Goto
	for _, l := range s.lines {
		if !l.inside {
			continue
		}
		for _, m := range gotoRe.FindAllStringSubmatchIndex(l.text, -1) {
			out = append(out, Goto{
				Label:  l.text[m[2]:m[3]],
				Thread: l.thread,
				URI:    in.URI,
				Range: syntax.Range{
					Start: syntax.Point{Row: l.row, Column: uint32(m[0])},
					End:   syntax.Point{Row: l.row, Column: uint32(m[1])},
				},
				LabelRange: syntax.Range{
					Start: syntax.Point{Row: l.row, Column: uint32(m[2])},
					End:   syntax.Point{Row: l.row, Column: uint32(m[3])},
				},
			})
		}
	}
	return out, nil
}

// Identifiers finds whole-word occurrences of name. A word boundary is any
// position not adjacent to an identifier character.
func (x *Textual) Identifiers(in Input, name string) ([]syntax.Range, error) {
	if !identRe.MatchString(name) {
		return nil, nil
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return nil, err
	}
	var out []syntax.Range
	for i, b := range bytes.Split(in.Text, []byte("\n")) {
		for _, m := range re.FindAllIndex(b, -1) {
			out = append(out, syntax.Range{
				Start: syntax.Point{Row: uint32(i), Column: uint32(m[0])},
				End:   syntax.Point{Row: uint32(i), Column: uint32(m[1])},
			})
		}
	}
	return out, nil
}

// assignedAt reports whether an assignment operator follows position i,
// after an optional subscript.
func assignedAt(text string, i int) bool {
	rest := strings.TrimLeft(text[i:], " \t")
	if strings.HasPrefix(rest, "[") {
		if j := strings.IndexByte(rest, ']'); j >= 0 {
			rest = strings.TrimLeft(rest[j+1:], " \t")
		}
	}
	for _, op := range []string{"+=", "-=", "*=", "/=", "++", "--"} {
		if strings.HasPrefix(rest, op) {
			return true
		}
	}
	return strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==")
}

func isPathLike(s string) bool {
	return strings.ContainsAny(s, "/\\") || strings.HasSuffix(strings.ToLower(s), ".scr")
}

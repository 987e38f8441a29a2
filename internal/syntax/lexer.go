package syntax

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokString
	tokPath
	tokPunct
	tokIllegal
)

type token struct {
	kind       tokenKind
	text       string
	start      uint32
	end        uint32
	startPoint Point
	endPoint   Point

	// unterminated marks a string literal cut off by a newline or EOF.
	unterminated bool
}

type lexState struct {
	pos uint32
	row uint32
	col uint32
}

type lexer struct {
	src []byte
	lexState
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src}
}

func (l *lexer) save() lexState { return l.lexState }
func (l *lexer) restore(s lexState) { l.lexState = s }

func (l *lexer) point() Point { return Point{Row: l.row, Column: l.col} }

func (l *lexer) peekByte(off uint32) byte {
	if int(l.pos+off) >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) bump() {
	if int(l.pos) >= len(l.src) {
		return
	}
	if l.src[l.pos] == '\n' {
		l.row++
		l.col = 0
	} else {
		l.col++
	}
	l.pos++
}

// skipTrivia consumes spaces, comments and line continuations. It stops at a
// newline, which is significant. A block comment spanning lines reports true
// so the caller can emit a separator in its place.
func (l *lexer) skipTrivia() (sawNewline bool) {
	for int(l.pos) < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.bump()
		case c == '\\' && (l.peekByte(1) == '\n' || (l.peekByte(1) == '\r' && l.peekByte(2) == '\n')):
			l.bump()
			for l.src[l.pos] != '\n' {
				l.bump()
			}
			l.bump()
		case c == '/' && l.peekByte(1) == '/':
			for int(l.pos) < len(l.src) && l.src[l.pos] != '\n' {
				l.bump()
			}
		case c == '/' && l.peekByte(1) == '*':
			l.bump()
			l.bump()
			for int(l.pos) < len(l.src) {
				if l.src[l.pos] == '*' && l.peekByte(1) == '/' {
					l.bump()
					l.bump()
					break
				}
				if l.src[l.pos] == '\n' {
					sawNewline = true
				}
				l.bump()
			}
			if sawNewline {
				return true
			}
		default:
			return false
		}
	}
	return false
}

var twoCharPunct = []string{
	"::", "+=", "-=", "*=", "/=", "++", "--", "==", "!=", "<=", ">=", "&&", "||",
}

const oneCharPunct = ":;,.()[]{}$=+-*/%!~<>&|^"

func (l *lexer) next() token {
	startState := l.save()
	if l.skipTrivia() {
		// A multi-line block comment separates statements like a newline.
		return token{kind: tokNewline, start: startState.pos, end: l.pos,
			startPoint: Point{Row: startState.row, Column: startState.col}, endPoint: l.point()}
	}
	t := token{start: l.pos, startPoint: l.point()}
	finish := func(kind tokenKind) token {
		t.kind = kind
		t.end = l.pos
		t.endPoint = l.point()
		t.text = string(l.src[t.start:t.end])
		return t
	}
	if int(l.pos) >= len(l.src) {
		return finish(tokEOF)
	}
	c := l.src[l.pos]
	switch {
	case c == '\n':
		l.bump()
		return finish(tokNewline)
	case isIdentStart(c):
		for int(l.pos) < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.bump()
		}
		return finish(tokIdent)
	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		for int(l.pos) < len(l.src) && isDigit(l.src[l.pos]) {
			l.bump()
		}
		if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
			l.bump()
			for int(l.pos) < len(l.src) && isDigit(l.src[l.pos]) {
				l.bump()
			}
		}
		return finish(tokNumber)
	case c == '"':
		l.bump()
		for {
			if int(l.pos) >= len(l.src) || l.src[l.pos] == '\n' {
				t.unterminated = true
				break
			}
			if l.src[l.pos] == '\\' && int(l.pos)+1 < len(l.src) && l.src[l.pos+1] != '\n' {
				l.bump()
				l.bump()
				continue
			}
			if l.src[l.pos] == '"' {
				l.bump()
				break
			}
			l.bump()
		}
		return finish(tokString)
	}
	if int(l.pos)+1 < len(l.src) {
		pair := string(l.src[l.pos : l.pos+2])
		for _, p := range twoCharPunct {
			if pair == p {
				l.bump()
				l.bump()
				return finish(tokPunct)
			}
		}
	}
	if strings.IndexByte(oneCharPunct, c) >= 0 {
		l.bump()
		return finish(tokPunct)
	}
	// Consume a whole UTF-8 sequence so columns stay on rune boundaries.
	l.bump()
	for int(l.pos) < len(l.src) && l.src[l.pos]&0xC0 == 0x80 {
		l.bump()
	}
	return finish(tokIllegal)
}

// scanPath re-reads the input at t as a script path such as
// "global/util.scr". It reports false, leaving the lexer untouched, when the
// text there is not path-shaped.
func (l *lexer) scanPath(t token) (token, bool) {
	saved := l.save()
	l.restore(lexState{pos: t.start, row: t.startPoint.Row, col: t.startPoint.Column})
	for int(l.pos) < len(l.src) && isPathChar(l.src[l.pos]) {
		l.bump()
	}
	text := string(l.src[t.start:l.pos])
	if text == "" || !(strings.ContainsAny(text, "/\\") || strings.HasSuffix(strings.ToLower(text), ".scr")) {
		l.restore(saved)
		return token{}, false
	}
	return token{kind: tokPath, text: text, start: t.start, end: l.pos,
		startPoint: t.startPoint, endPoint: l.point()}, true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isPathChar(c byte) bool {
	return isIdentChar(c) || c == '/' || c == '\\' || c == '.' || c == '-'
}

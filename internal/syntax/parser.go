package syntax

import "strings"

// parser is a recursive-descent parser that never fails: anything it cannot
// fit to the grammar becomes an ERROR node, and absent tokens become
// zero-width MISSING nodes.
type parser struct {
	src []byte
	lx  *lexer
	tok token

	prevEnd   uint32
	prevPoint Point

	// parens > 0 suppresses newline tokens inside (), [] and for headers.
	parens     int
	blockDepth int

	reuse func(t token) *Node
}

type mark struct {
	lex       lexState
	tok       token
	prevEnd   uint32
	prevPoint Point
}

func parseSource(src []byte, reuse func(t token) *Node) *Node {
	p := &parser{src: src, lx: newLexer(src), reuse: reuse}
	p.tok = p.lx.next()
	return p.parseSourceFile()
}

func (p *parser) advance() {
	p.prevEnd, p.prevPoint = p.tok.end, p.tok.endPoint
	p.tok = p.lx.next()
	for p.parens > 0 && p.tok.kind == tokNewline {
		p.tok = p.lx.next()
	}
}

func (p *parser) mark() mark {
	return mark{lex: p.lx.save(), tok: p.tok, prevEnd: p.prevEnd, prevPoint: p.prevPoint}
}

func (p *parser) reset(m mark) {
	p.lx.restore(m.lex)
	p.tok, p.prevEnd, p.prevPoint = m.tok, m.prevEnd, m.prevPoint
}

// resumeAfter continues lexing right after an adopted subtree.
func (p *parser) resumeAfter(n *Node) {
	p.lx.restore(lexState{pos: n.endByte, row: n.endPoint.Row, col: n.endPoint.Column})
	p.prevEnd, p.prevPoint = n.endByte, n.endPoint
	p.tok = p.lx.next()
}

func (p *parser) isPunct(text string) bool {
	return p.tok.kind == tokPunct && p.tok.text == text
}

// keyword returns the lower-cased statement or call keyword at the cursor.
func (p *parser) keyword() string {
	if p.tok.kind != tokIdent {
		return ""
	}
	lower := strings.ToLower(p.tok.text)
	if statementKeywords[lower] || CallKeywords[lower] {
		return lower
	}
	return ""
}

func (p *parser) isKeyword(kw string) bool { return p.keyword() == kw }

func (p *parser) callKeyword() bool { return CallKeywords[p.keyword()] }

func (p *parser) isPlainIdent() bool {
	return p.tok.kind == tokIdent && p.keyword() == "" && !ScopeKeywords[p.tok.text]
}

func (p *parser) atTerminator() bool {
	switch p.tok.kind {
	case tokEOF, tokNewline:
		return true
	}
	return p.isPunct(";") || p.isPunct("}")
}

func (p *parser) leaf(kind string, named bool) *Node {
	t := p.tok
	n := &Node{
		kind:       kind,
		named:      named,
		startByte:  t.start,
		endByte:    t.end,
		startPoint: t.startPoint,
		endPoint:   t.endPoint,
	}
	p.advance()
	return n
}

// token consumes the current token as an anonymous node. Keywords are
// normalised to lower case so patterns can match them literally.
func (p *parser) token() *Node {
	kind := p.tok.text
	if p.tok.kind == tokIdent {
		kind = strings.ToLower(kind)
	}
	return p.leaf(kind, false)
}

func (p *parser) missing(kind string) *Node {
	return &Node{
		kind:       kind,
		named:      morpheus.HasNodeType(kind),
		missing:    true,
		hasError:   true,
		startByte:  p.prevEnd,
		endByte:    p.prevEnd,
		startPoint: p.prevPoint,
		endPoint:   p.prevPoint,
	}
}

func (p *parser) expect(text string) *Node {
	if p.isPunct(text) || p.isKeyword(text) {
		return p.token()
	}
	return p.missing(text)
}

// node builds a named node. A node without children is placed, zero-width,
// right after the previous token.
func (p *parser) node(kind string, children ...*Node) *Node {
	n := newNode(kind, children...)
	if len(n.children) == 0 {
		n.startByte, n.endByte = p.prevEnd, p.prevEnd
		n.startPoint, n.endPoint = p.prevPoint, p.prevPoint
	}
	return n
}

func (p *parser) skipNewlines() {
	for p.tok.kind == tokNewline {
		p.advance()
	}
}

func (p *parser) skipSeparators() {
	for p.tok.kind == tokNewline || p.isPunct(";") {
		p.advance()
	}
}

func (p *parser) parseSourceFile() *Node {
	var children []*Node
	for p.tok.kind != tokEOF {
		if p.tok.kind == tokNewline || p.isPunct(";") {
			p.advance()
			continue
		}
		if p.reuse != nil {
			if n := p.reuse(p.tok); n != nil {
				children = append(children, n)
				p.resumeAfter(n)
				continue
			}
		}
		if p.atThreadHeader(false) {
			children = append(children, p.parseThread())
			continue
		}
		children = append(children, p.errorLine())
	}
	root := newNode(TypeSourceFile, children...)
	root.startByte, root.startPoint = 0, Point{}
	root.endByte, root.endPoint = p.tok.end, p.tok.endPoint
	return root
}

// atThreadHeader reports whether the current line reads "name params... :".
// With needParams set, a bare "name:" line does not count, since inside a
// thread body that shape is a label.
func (p *parser) atThreadHeader(needParams bool) bool {
	if !p.isPlainIdent() {
		return false
	}
	m := p.mark()
	defer p.reset(m)
	p.advance()
	params := 0
	for {
		switch {
		case p.isPunct(":"):
			return !needParams || params > 0
		case p.tok.kind == tokNewline || p.tok.kind == tokEOF:
			return false
		case p.isPunct("=") || p.isPunct("::") || p.keyword() != "":
			return false
		}
		params++
		p.advance()
	}
}

func (p *parser) parseThread() *Node {
	children := []*Node{withField(FieldName, p.leaf(TypeIdentifier, true))}
	var params []*Node
	for !p.isPunct(":") && p.tok.kind != tokNewline && p.tok.kind != tokEOF {
		if param := p.parsePostfix(); param != nil {
			params = append(params, param)
			continue
		}
		params = append(params, p.errorToken())
	}
	if len(params) > 0 {
		children = append(children, withField(FieldParameters, p.node(TypeParameterList, params...)))
	}
	children = append(children, p.expect(":"))
	children = append(children, withField(FieldBody, p.parseThreadBody()))
	if p.isKeyword("end") {
		children = append(children, p.token())
		if !p.atTerminator() && p.startsExpression() {
			if v := p.parseExpression(); v != nil {
				children = append(children, withField(FieldValue, v))
			}
		}
	} else {
		children = append(children, p.missing("end"))
	}
	n := newNode(TypeThreadDefinition, children...)
	if p.tok.end > n.endByte {
		n.lookahead = p.tok.end - n.endByte
	}
	return n
}

func (p *parser) parseThreadBody() *Node {
	var stmts []*Node
	for {
		p.skipSeparators()
		if p.tok.kind == tokEOF || p.isKeyword("end") || p.atThreadHeader(true) {
			break
		}
		stmts = append(stmts, p.parseStatementLine()...)
	}
	return p.node(TypeThreadBody, stmts...)
}

// parseStatementLine parses one statement and wraps whatever is left before
// the next separator in an ERROR node.
func (p *parser) parseStatementLine() []*Node {
	stmt := p.parseStatement()
	if p.atTerminator() {
		return []*Node{stmt}
	}
	return []*Node{stmt, p.errorLine()}
}

// errorLine consumes at least one token and then everything up to the end of
// the line or the closing brace of the enclosing block.
func (p *parser) errorLine() *Node {
	children := []*Node{p.errorPiece()}
	for p.tok.kind != tokNewline && p.tok.kind != tokEOF {
		if p.blockDepth > 0 && p.isPunct("}") {
			break
		}
		children = append(children, p.errorPiece())
	}
	return newNode(TypeError, children...)
}

func (p *parser) errorToken() *Node {
	return newNode(TypeError, p.errorPiece())
}

func (p *parser) errorPiece() *Node {
	switch {
	case p.tok.kind == tokIdent && p.keyword() == "":
		return p.leaf(TypeIdentifier, true)
	case p.tok.kind == tokNumber:
		return p.leaf(TypeNumber, true)
	case p.tok.kind == tokString:
		return p.leaf(TypeString, true)
	}
	return p.token()
}

func (p *parser) parseStatement() *Node {
	switch kw := p.keyword(); kw {
	case "if":
		return p.parseIf()
	case "while":
		return p.parseWhile()
	case "for":
		return p.parseFor()
	case "switch":
		return p.parseSwitch()
	case "goto":
		g := p.token()
		var target *Node
		if p.isPlainIdent() {
			target = p.leaf(TypeIdentifier, true)
		} else {
			target = p.missing(TypeIdentifier)
		}
		return p.node(TypeGotoStatement, g, withField(FieldTarget, target))
	case "break":
		return p.node(TypeBreakStatement, p.token())
	case "continue":
		return p.node(TypeContinueStatement, p.token())
	case "end":
		children := []*Node{p.token()}
		if !p.atTerminator() && p.startsExpression() {
			children = append(children, withField(FieldValue, p.parseExpression()))
		}
		return p.node(TypeReturnStatement, children...)
	case "thread", "waitthread", "exec", "waitexec":
		return p.parseCall(nil, TypeCallStatement)
	case "case", "default", "else":
		return p.errorLine()
	}
	if p.isPunct("{") {
		return p.parseBlock()
	}
	if p.atLabel() {
		name := withField(FieldName, p.leaf(TypeIdentifier, true))
		return p.node(TypeLabelDefinition, name, p.token())
	}
	return p.parseSimpleStatement()
}

func (p *parser) atLabel() bool {
	if !p.isPlainIdent() {
		return false
	}
	m := p.mark()
	defer p.reset(m)
	p.advance()
	return p.isPunct(":")
}

func (p *parser) parseSimpleStatement() *Node {
	lhs := p.parsePostfix()
	if lhs == nil {
		return p.errorLine()
	}
	if p.atAssignmentOperator() {
		op := p.tok.text
		children := []*Node{withField(FieldLeft, lhs), withField(FieldOperator, p.token())}
		if op != "++" && op != "--" {
			rhs := p.parseRHS()
			if rhs == nil {
				rhs = p.missing(TypeIdentifier)
			}
			children = append(children, withField(FieldRight, rhs))
		}
		return p.node(TypeAssignmentStatement, children...)
	}
	if p.callKeyword() {
		return p.parseCall(lhs, TypeCallStatement)
	}
	if p.atTerminator() || p.isPunct(")") {
		if lhs.kind == TypeIdentifier {
			return p.node(TypeCommandStatement, withField(FieldName, lhs))
		}
		return p.node(TypeExpressionStatement, lhs)
	}
	if lhs.kind == TypeIdentifier {
		return p.node(TypeCommandStatement, withField(FieldName, lhs), withField(FieldArguments, p.parseArguments()))
	}
	if p.isPlainIdent() {
		name := withField(FieldName, p.leaf(TypeIdentifier, true))
		children := []*Node{withField(FieldReceiver, lhs), name}
		if !p.atTerminator() && p.startsExpression() {
			children = append(children, withField(FieldArguments, p.parseArguments()))
		}
		return p.node(TypeCommandStatement, children...)
	}
	return p.node(TypeExpressionStatement, lhs)
}

func (p *parser) atAssignmentOperator() bool {
	if p.tok.kind != tokPunct {
		return false
	}
	switch p.tok.text {
	case "=", "+=", "-=", "*=", "/=", "++", "--":
		return true
	}
	return false
}

// parseRHS parses the value of an assignment, which may itself be a call or
// a command such as "spawn script_model".
func (p *parser) parseRHS() *Node {
	if p.callKeyword() {
		return p.parseCall(nil, TypeCallExpression)
	}
	e := p.parseExpression()
	if e == nil {
		return nil
	}
	if p.callKeyword() {
		return p.parseCall(e, TypeCallExpression)
	}
	if p.atTerminator() || p.isPunct(")") {
		return e
	}
	if e.kind == TypeIdentifier && p.startsExpression() {
		return p.node(TypeCommandExpression, withField(FieldName, e), withField(FieldArguments, p.parseArguments()))
	}
	if p.isPlainIdent() {
		name := withField(FieldName, p.leaf(TypeIdentifier, true))
		children := []*Node{withField(FieldReceiver, e), name}
		if !p.atTerminator() && p.startsExpression() {
			children = append(children, withField(FieldArguments, p.parseArguments()))
		}
		return p.node(TypeCommandExpression, children...)
	}
	return e
}

func (p *parser) parseCall(receiver *Node, kind string) *Node {
	children := []*Node{withField(FieldReceiver, receiver), p.token()}
	children = append(children, withField(FieldTarget, p.parseCallTarget()))
	if !p.atTerminator() && p.startsExpression() && !p.callKeyword() {
		children = append(children, withField(FieldArguments, p.parseArguments()))
	}
	return p.node(kind, children...)
}

// parseCallTarget reads what follows a call keyword: a thread name, a script
// path, or "path::label".
func (p *parser) parseCallTarget() *Node {
	var path *Node
	if t, ok := p.lx.scanPath(p.tok); ok {
		p.tok = t
		path = p.leaf(TypeScriptPath, true)
	} else if p.tok.kind == tokIdent && p.keyword() == "" {
		m := p.mark()
		ident := p.leaf(TypeIdentifier, true)
		if !p.isPunct("::") {
			return ident
		}
		p.reset(m)
		path = p.leaf(TypeScriptPath, true)
	} else if p.isPunct("::") {
		path = p.missing(TypeScriptPath)
	} else {
		return p.missing(TypeIdentifier)
	}
	if !p.isPunct("::") {
		return path
	}
	sep := p.token()
	var label *Node
	if p.tok.kind == tokIdent {
		label = p.leaf(TypeIdentifier, true)
	} else {
		label = p.missing(TypeIdentifier)
	}
	return p.node(TypePathLabel, withField(FieldPath, path), sep, withField(FieldLabel, label))
}

func (p *parser) parseArguments() *Node {
	var args []*Node
	for !p.atTerminator() && p.startsExpression() && !p.callKeyword() {
		a := p.parseUnary()
		if a == nil {
			break
		}
		args = append(args, a)
	}
	return p.node(TypeArgumentList, args...)
}

func (p *parser) startsExpression() bool {
	switch p.tok.kind {
	case tokIdent:
		kw := p.keyword()
		return kw == "" || CallKeywords[kw]
	case tokNumber, tokString:
		return true
	case tokPunct:
		switch p.tok.text {
		case "$", "(", "-", "!", "~":
			return true
		}
	}
	return false
}

var binaryPrecedence = map[string]int{
	"::": 1,
	"||": 2,
	"&&": 3,
	"|":  4,
	"^":  5,
	"&":  6,
	"==": 7, "!=": 7,
	"<": 8, ">": 8, "<=": 8, ">=": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *parser) parseExpression() *Node {
	return p.parseBinary(1)
}

func (p *parser) parseBinary(minPrec int) *Node {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for p.tok.kind == tokPunct {
		prec := binaryPrecedence[p.tok.text]
		if prec == 0 || prec < minPrec || p.signedElement() {
			break
		}
		op := withField(FieldOperator, p.token())
		right := p.parseBinary(prec + 1)
		if right == nil {
			right = p.missing(TypeIdentifier)
		}
		left = p.node(TypeBinaryExpression, withField(FieldLeft, left), op, withField(FieldRight, right))
	}
	return left
}

// signedElement reports whether a sign inside parentheses starts a new
// vector component, as in "( 0 -64 8 )", instead of a subtraction.
func (p *parser) signedElement() bool {
	if p.parens == 0 || (p.tok.text != "-" && p.tok.text != "+") {
		return false
	}
	if p.tok.start == p.prevEnd {
		return false
	}
	next := p.lx.peekByte(0)
	return p.tok.end == p.lx.pos && (isDigit(next) || next == '.')
}

func (p *parser) parseUnary() *Node {
	if p.tok.kind == tokPunct {
		switch p.tok.text {
		case "-", "!", "~":
			op := withField(FieldOperator, p.token())
			arg := p.parseUnary()
			if arg == nil {
				arg = p.missing(TypeIdentifier)
			}
			return p.node(TypeUnaryExpression, op, withField(FieldArgument, arg))
		}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() *Node {
	e := p.parsePrimary()
	if e == nil {
		return nil
	}
	for {
		switch {
		case p.isPunct("."):
			dot := p.token()
			var prop *Node
			if p.tok.kind == tokIdent {
				prop = p.leaf(TypeIdentifier, true)
			} else {
				prop = p.missing(TypeIdentifier)
			}
			e = p.node(TypeMemberExpression, withField(FieldObject, e), dot, withField(FieldProperty, prop))
		case p.isPunct("["):
			p.parens++
			open := p.token()
			idx := p.parseExpression()
			if idx == nil {
				idx = p.missing(TypeIdentifier)
			}
			p.parens--
			closing := p.expect("]")
			e = p.node(TypeSubscriptExpression, withField(FieldObject, e), open, withField(FieldIndex, idx), closing)
		default:
			return e
		}
	}
}

func (p *parser) parsePrimary() *Node {
	switch p.tok.kind {
	case tokIdent:
		if ScopeKeywords[p.tok.text] {
			return p.parseScope()
		}
		if p.keyword() != "" {
			return nil
		}
		return p.leaf(TypeIdentifier, true)
	case tokNumber:
		return p.leaf(TypeNumber, true)
	case tokString:
		if p.tok.unterminated {
			return newNode(TypeError, p.leaf(TypeString, true))
		}
		return p.leaf(TypeString, true)
	case tokPunct:
		switch p.tok.text {
		case "$":
			return p.parseEntity()
		case "(":
			return p.parseParenthesized()
		}
	}
	return nil
}

// parseScope handles a lower-case scope word, either as the prefix of a
// scoped variable (local.x) or standing alone (self, level).
func (p *parser) parseScope() *Node {
	m := p.mark()
	p.advance()
	dotted := p.isPunct(".")
	if dotted {
		p.advance()
		dotted = p.tok.kind == tokIdent
	}
	p.reset(m)
	scope := p.leaf(TypeScope, true)
	if !dotted {
		return scope
	}
	dot := p.token()
	name := p.leaf(TypeIdentifier, true)
	return p.node(TypeScopedVariable, withField(FieldScope, scope), dot, withField(FieldName, name))
}

func (p *parser) parseEntity() *Node {
	dollar := p.tok
	if p.lx.pos < uint32(len(p.src)) && isIdentStart(p.src[p.lx.pos]) {
		p.advance()
		name := p.tok
		p.advance()
		return &Node{
			kind:       TypeEntityReference,
			named:      true,
			startByte:  dollar.start,
			endByte:    name.end,
			startPoint: dollar.startPoint,
			endPoint:   name.endPoint,
		}
	}
	sign := p.token()
	if p.isPunct("(") {
		return p.node(TypeEntityReference, sign, withField(FieldName, p.parseParenthesized()))
	}
	return p.node(TypeEntityReference, sign, p.missing(TypeIdentifier))
}

// parseParenthesized parses "(expr)" or a vector literal "(x y z)".
func (p *parser) parseParenthesized() *Node {
	p.parens++
	open := p.token()
	first := p.parseExpression()
	if first == nil {
		p.parens--
		return p.node(TypeParenthesized, open, p.expect(")"))
	}
	children := []*Node{open, first}
	kind := TypeParenthesized
	for !p.isPunct(")") && p.startsExpression() {
		e := p.parseExpression()
		if e == nil {
			break
		}
		kind = TypeVector
		children = append(children, e)
	}
	p.parens--
	children = append(children, p.expect(")"))
	return p.node(kind, children...)
}

func (p *parser) parseBlock() *Node {
	open := p.token()
	p.blockDepth++
	children := []*Node{open}
	for {
		p.skipSeparators()
		if p.tok.kind == tokEOF || p.isPunct("}") {
			break
		}
		children = append(children, p.parseStatementLine()...)
	}
	p.blockDepth--
	children = append(children, p.expect("}"))
	return p.node(TypeBlock, children...)
}

func (p *parser) parseCondition() *Node {
	if p.isPunct("(") {
		return p.parseParenthesized()
	}
	if e := p.parseExpression(); e != nil {
		return e
	}
	return p.missing(TypeParenthesized)
}

func (p *parser) parseBody() *Node {
	p.skipNewlines()
	if p.tok.kind == tokEOF || p.isPunct("}") {
		return p.missing(TypeBlock)
	}
	return p.parseStatement()
}

func (p *parser) parseIf() *Node {
	children := []*Node{p.token()}
	children = append(children, withField(FieldCondition, p.parseCondition()))
	children = append(children, withField(FieldConsequence, p.parseBody()))
	m := p.mark()
	p.skipNewlines()
	if p.isKeyword("else") {
		children = append(children, p.token())
		children = append(children, withField(FieldAlternative, p.parseBody()))
	} else {
		p.reset(m)
	}
	return p.node(TypeIfStatement, children...)
}

func (p *parser) parseWhile() *Node {
	children := []*Node{p.token()}
	children = append(children, withField(FieldCondition, p.parseCondition()))
	children = append(children, withField(FieldBody, p.parseBody()))
	return p.node(TypeWhileStatement, children...)
}

func (p *parser) parseFor() *Node {
	children := []*Node{p.token()}
	if !p.isPunct("(") {
		children = append(children, p.missing("("))
		children = append(children, withField(FieldBody, p.parseBody()))
		return p.node(TypeForStatement, children...)
	}
	p.parens++
	children = append(children, p.token())
	if !p.isPunct(";") {
		children = append(children, withField(FieldInitializer, p.parseSimpleStatement()))
	}
	children = append(children, p.expect(";"))
	if !p.isPunct(";") {
		if cond := p.parseExpression(); cond != nil {
			children = append(children, withField(FieldCondition, cond))
		}
	}
	children = append(children, p.expect(";"))
	if !p.isPunct(")") {
		children = append(children, withField(FieldUpdate, p.parseSimpleStatement()))
	}
	p.parens--
	children = append(children, p.expect(")"))
	children = append(children, withField(FieldBody, p.parseBody()))
	return p.node(TypeForStatement, children...)
}

func (p *parser) parseSwitch() *Node {
	children := []*Node{p.token()}
	children = append(children, withField(FieldValue, p.parseCondition()))
	p.skipNewlines()
	if !p.isPunct("{") {
		children = append(children, withField(FieldBody, p.missing(TypeSwitchBody)))
		return p.node(TypeSwitchStatement, children...)
	}
	body := []*Node{p.token()}
	p.blockDepth++
	for {
		p.skipSeparators()
		if p.tok.kind == tokEOF || p.isPunct("}") {
			break
		}
		if kw := p.keyword(); kw == "case" || kw == "default" {
			body = append(body, p.parseCase())
			continue
		}
		body = append(body, p.parseStatementLine()...)
	}
	p.blockDepth--
	body = append(body, p.expect("}"))
	children = append(children, withField(FieldBody, p.node(TypeSwitchBody, body...)))
	return p.node(TypeSwitchStatement, children...)
}

func (p *parser) parseCase() *Node {
	kw := p.keyword()
	children := []*Node{p.token()}
	if kw == "case" {
		v := p.parseUnary()
		if v == nil {
			v = p.missing(TypeIdentifier)
		}
		children = append(children, withField(FieldValue, v))
	}
	children = append(children, p.expect(":"))
	for {
		p.skipSeparators()
		if p.tok.kind == tokEOF || p.isPunct("}") {
			break
		}
		if next := p.keyword(); next == "case" || next == "default" {
			break
		}
		children = append(children, p.parseStatementLine()...)
	}
	return p.node(TypeCaseClause, children...)
}

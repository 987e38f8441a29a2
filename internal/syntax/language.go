package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Point is a zero-based row/column position. Columns count bytes, matching
// tree-sitter's convention.
type Point = sitter.Point

// Edit describes one text change in both byte offsets and row/column points.
type Edit = sitter.EditInput

// Range is a half-open span between two points.
type Range struct {
	Start Point
	End   Point
}

// Contains reports whether p lies within r (end exclusive).
func (r Range) Contains(p Point) bool {
	return !pointLess(p, r.Start) && pointLess(p, r.End)
}

// Named node types produced by the parser.
const (
	TypeSourceFile          = "source_file"
	TypeThreadDefinition    = "thread_definition"
	TypeParameterList       = "parameter_list"
	TypeThreadBody          = "thread_body"
	TypeBlock               = "block"
	TypeLabelDefinition     = "label_definition"
	TypeGotoStatement       = "goto_statement"
	TypeCallStatement       = "call_statement"
	TypeCallExpression      = "call_expression"
	TypeCommandStatement    = "command_statement"
	TypeCommandExpression   = "command_expression"
	TypeArgumentList        = "argument_list"
	TypeAssignmentStatement = "assignment_statement"
	TypeExpressionStatement = "expression_statement"
	TypeIfStatement         = "if_statement"
	TypeWhileStatement      = "while_statement"
	TypeForStatement        = "for_statement"
	TypeSwitchStatement     = "switch_statement"
	TypeSwitchBody          = "switch_body"
	TypeCaseClause          = "case_clause"
	TypeBreakStatement      = "break_statement"
	TypeContinueStatement   = "continue_statement"
	TypeReturnStatement     = "return_statement"
	TypeBinaryExpression    = "binary_expression"
	TypeUnaryExpression     = "unary_expression"
	TypeParenthesized       = "parenthesized_expression"
	TypeVector              = "vector"
	TypeSubscriptExpression = "subscript_expression"
	TypeMemberExpression    = "member_expression"
	TypeScopedVariable      = "scoped_variable"
	TypeScope               = "scope"
	TypePathLabel           = "path_label"
	TypeScriptPath          = "script_path"
	TypeEntityReference     = "entity_reference"
	TypeIdentifier          = "identifier"
	TypeNumber              = "number"
	TypeString              = "string"
	TypeError               = "ERROR"
)

// Field names attached to children.
const (
	FieldName        = "name"
	FieldParameters  = "parameters"
	FieldBody        = "body"
	FieldValue       = "value"
	FieldTarget      = "target"
	FieldReceiver    = "receiver"
	FieldArguments   = "arguments"
	FieldLeft        = "left"
	FieldRight       = "right"
	FieldOperator    = "operator"
	FieldCondition   = "condition"
	FieldConsequence = "consequence"
	FieldAlternative = "alternative"
	FieldInitializer = "initializer"
	FieldUpdate      = "update"
	FieldArgument    = "argument"
	FieldObject      = "object"
	FieldProperty    = "property"
	FieldIndex       = "index"
	FieldScope       = "scope"
	FieldPath        = "path"
	FieldLabel       = "label"
)

// Language describes the node types and field names the grammar can produce.
// The query compiler validates patterns against it.
type Language struct {
	Name       string
	NodeTypes  []string
	FieldNames []string
	Tokens     []string

	types  map[string]bool
	fields map[string]bool
	tokens map[string]bool
}

// HasNodeType reports whether name is a named node type of the grammar.
func (l *Language) HasNodeType(name string) bool { return l.types[name] }

// HasField reports whether name is a field the grammar assigns.
func (l *Language) HasField(name string) bool { return l.fields[name] }

// HasToken reports whether text is an anonymous token the grammar emits.
func (l *Language) HasToken(text string) bool { return l.tokens[text] }

// Statement keywords. These never parse as identifiers.
var statementKeywords = map[string]bool{
	"if": true, "else": true, "while": true, "for": true, "switch": true,
	"case": true, "default": true, "break": true, "continue": true,
	"goto": true, "end": true,
}

// CallKeywords introduce a thread call.
var CallKeywords = map[string]bool{
	"thread": true, "waitthread": true, "exec": true, "waitexec": true,
}

// ScopeKeywords prefix scoped variables or stand alone as entity expressions.
var ScopeKeywords = map[string]bool{
	"local": true, "level": true, "game": true, "group": true,
	"parm": true, "self": true, "owner": true,
}

// VariableScopes are the storage tiers that hold script variables.
var VariableScopes = map[string]bool{
	"local": true, "level": true, "game": true, "group": true,
}

// IsKeyword reports whether word is reserved by the grammar.
func IsKeyword(word string) bool {
	return statementKeywords[word] || CallKeywords[word] || ScopeKeywords[word]
}

var punctuation = []string{
	":", "::", ";", ",", ".", "(", ")", "[", "]", "{", "}", "$",
	"=", "+=", "-=", "*=", "/=", "++", "--",
	"+", "-", "*", "/", "%", "!", "~",
	"==", "!=", "<", ">", "<=", ">=", "&", "|", "^", "&&", "||",
}

var morpheus = newLanguage()

// Morpheus returns the grammar description of the Morpheus script language.
func Morpheus() *Language { return morpheus }

func newLanguage() *Language {
	l := &Language{
		Name: "morpheus",
		NodeTypes: []string{
			TypeSourceFile, TypeThreadDefinition, TypeParameterList, TypeThreadBody,
			TypeBlock, TypeLabelDefinition, TypeGotoStatement, TypeCallStatement,
			TypeCallExpression, TypeCommandStatement, TypeCommandExpression,
			TypeArgumentList, TypeAssignmentStatement, TypeExpressionStatement,
			TypeIfStatement, TypeWhileStatement, TypeForStatement, TypeSwitchStatement,
			TypeSwitchBody, TypeCaseClause, TypeBreakStatement, TypeContinueStatement,
			TypeReturnStatement, TypeBinaryExpression, TypeUnaryExpression,
			TypeParenthesized, TypeVector, TypeSubscriptExpression, TypeMemberExpression,
			TypeScopedVariable, TypeScope, TypePathLabel, TypeScriptPath,
			TypeEntityReference, TypeIdentifier, TypeNumber, TypeString, TypeError,
		},
		FieldNames: []string{
			FieldName, FieldParameters, FieldBody, FieldValue, FieldTarget,
			FieldReceiver, FieldArguments, FieldLeft, FieldRight, FieldOperator,
			FieldCondition, FieldConsequence, FieldAlternative, FieldInitializer,
			FieldUpdate, FieldArgument, FieldObject, FieldProperty, FieldIndex,
			FieldScope, FieldPath, FieldLabel,
		},
		types:  make(map[string]bool),
		fields: make(map[string]bool),
		tokens: make(map[string]bool),
	}
	for kw := range statementKeywords {
		l.Tokens = append(l.Tokens, kw)
	}
	for kw := range CallKeywords {
		l.Tokens = append(l.Tokens, kw)
	}
	l.Tokens = append(l.Tokens, punctuation...)
	for _, t := range l.NodeTypes {
		l.types[t] = true
	}
	for _, f := range l.FieldNames {
		l.fields[f] = true
	}
	for _, t := range l.Tokens {
		l.tokens[t] = true
	}
	return l
}

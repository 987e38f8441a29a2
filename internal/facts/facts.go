// Package facts extracts the symbols of a Morpheus script: threads, labels,
// scoped variables, calls and gotos.
//
// Two extractors produce the same shapes. Structural runs the embedded
// queries over a syntax tree; Textual matches lines with regular expressions
// and is used when no usable tree exists.
package facts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/jward/morpheus/internal/syntax"
)

var log = commonlog.GetLogger("morpheus.facts")

// ErrNoTree is returned by Structural when the input carries no live tree.
var ErrNoTree = errors.New("facts: no syntax tree")

// ErrNotLoaded is returned by Structural before its queries are compiled.
var ErrNotLoaded = errors.New("facts: queries not loaded")

// Input is one document to extract from. Tree may be nil for extractors that
// only need the text.
type Input struct {
	URI  string
	Text []byte
	Tree *syntax.Tree
}

// Thread is a thread definition.
type Thread struct {
	Name      string
	Params    []string
	URI       string
	Range     syntax.Range
	NameRange syntax.Range
	BodyRange syntax.Range
}

// Label is a jump target inside a thread.
type Label struct {
	Name      string
	Thread    string
	URI       string
	Range     syntax.Range
	NameRange syntax.Range
}

// Variable is the first write of a scoped variable in a document. Thread-local
// variables are tracked per thread; thread parameters declare them.
type Variable struct {
	Scope     string // local, level, game or group; always lower case
	Name      string
	Thread    string
	Param     bool
	URI       string
	Range     syntax.Range // scope.name
	NameRange syntax.Range // name only
}

// Key is the lower-cased "scope.name" of the variable.
func (v Variable) Key() string { return VariableKey(v.Scope, v.Name) }

// VariableUse is any occurrence of a scoped variable.
type VariableUse struct {
	Scope     string
	Name      string
	Thread    string
	Write     bool
	URI       string
	Range     syntax.Range
	NameRange syntax.Range
}

func (u VariableUse) Key() string { return VariableKey(u.Scope, u.Name) }

// Call is a thread, waitthread, exec or waitexec statement or expression.
// Target is the call target as written. Path and Label are set for
// cross-file targets ("global/util.scr::setup").
type Call struct {
	Keyword     string
	Target      string
	Path        string
	Label       string
	Thread      string
	URI         string
	Range       syntax.Range
	TargetRange syntax.Range
	PathRange   syntax.Range
	LabelRange  syntax.Range
}

// CrossFile reports whether the call names another script.
func (c Call) CrossFile() bool { return c.Path != "" }

// Goto is a jump to a label of the enclosing thread.
type Goto struct {
	Label      string
	Thread     string
	URI        string
	Range      syntax.Range
	LabelRange syntax.Range
}

// Set holds everything extracted from one document.
type Set struct {
	Threads   []Thread
	Labels    []Label
	Variables []Variable
	Uses      []VariableUse
	Calls     []Call
	Gotos     []Goto
}

// Extractor produces facts from a document.
type Extractor interface {
	Threads(in Input) ([]Thread, error)
	Labels(in Input) ([]Label, error)
	Variables(in Input) ([]Variable, error)
	Uses(in Input) ([]VariableUse, error)
	Calls(in Input) ([]Call, error)
	Gotos(in Input) ([]Goto, error)

	// Identifiers returns the ranges of identifiers equal to name, ignoring
	// case.
	Identifiers(in Input, name string) ([]syntax.Range, error)
}

// Extract runs every method of x over in. A panic inside x is returned as an
// error.
func Extract(x Extractor, in Input) (set Set, err error) {
	defer func() {
		if r := recover(); r != nil {
			set, err = Set{}, fmt.Errorf("facts: extract %s: panic: %v", in.URI, r)
		}
	}()
	if set.Threads, err = x.Threads(in); err != nil {
		return Set{}, err
	}
	if set.Labels, err = x.Labels(in); err != nil {
		return Set{}, err
	}
	if set.Variables, err = x.Variables(in); err != nil {
		return Set{}, err
	}
	if set.Uses, err = x.Uses(in); err != nil {
		return Set{}, err
	}
	if set.Calls, err = x.Calls(in); err != nil {
		return Set{}, err
	}
	if set.Gotos, err = x.Gotos(in); err != nil {
		return Set{}, err
	}
	return set, nil
}

// VariableKey is the index key of a scoped variable.
func VariableKey(scope, name string) string {
	return strings.ToLower(scope) + "." + strings.ToLower(name)
}

// firstWriteKey identifies a variable for first-write deduplication.
// Thread-local variables of different threads are distinct.
func firstWriteKey(scope, name, thread string) string {
	key := VariableKey(scope, name)
	if strings.EqualFold(scope, "local") {
		return strings.ToLower(thread) + "\x00" + key
	}
	return key
}

// IsVariableScope reports whether word names a variable storage tier, in any
// case.
func IsVariableScope(word string) bool {
	return syntax.VariableScopes[strings.ToLower(word)]
}

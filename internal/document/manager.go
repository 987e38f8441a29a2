// Package document tracks open script documents: their text, their syntax
// tree and the facts extracted from them.
//
// Every update first tries the structural path (parse, then run the queries).
// When that fails the previous tree is kept untouched, the text and version
// still advance, and the facts are recomputed by the textual extractor, so a
// document that once had a good parse never drops back to having no
// information.
package document

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/syntax"
)

var log = commonlog.GetLogger("morpheus.document")

// ErrUnknownDocument is returned for URIs that are not open.
var ErrUnknownDocument = errors.New("document: unknown document")

// Parser produces syntax trees. *syntax.Service implements it.
type Parser interface {
	Ready() bool
	Parse(text []byte) (*syntax.Tree, error)
	Reparse(text []byte, old *syntax.Tree) (*syntax.Tree, error)
}

// Mode is the analysis state of a document.
type Mode int

const (
	// Unparsed documents have no tree; their facts come from the textual
	// extractor.
	Unparsed Mode = iota
	// Structural documents have a current tree and facts extracted from it.
	Structural
	// Stale documents keep the last good tree, but it no longer matches the
	// text. Facts come from the textual extractor.
	Stale
	// Closed documents are no longer tracked.
	Closed
)

func (m Mode) String() string {
	switch m {
	case Unparsed:
		return "unparsed"
	case Structural:
		return "structural"
	case Stale:
		return "stale"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Document is the latest snapshot of a document's text.
type Document struct {
	URI     string
	Text    string
	Version int32
}

type entry struct {
	doc   Document
	lines *LineIndex
	tree  *syntax.Tree
	facts facts.Set
	mode  Mode
}

// Manager owns the documents and their trees. Each tree belongs to exactly
// one entry and is released exactly once, when it is replaced or its
// document closes. Manager is not safe for concurrent use.
type Manager struct {
	parser     Parser
	structural facts.Extractor
	fallback   facts.Extractor
	docs       map[string]*entry
}

// NewManager creates a Manager. structural runs over trees; fallback is used
// whenever no fresh tree is available.
func NewManager(parser Parser, structural, fallback facts.Extractor) *Manager {
	return &Manager{
		parser:     parser,
		structural: structural,
		fallback:   fallback,
		docs:       make(map[string]*entry),
	}
}

// Open starts tracking a document.
func (m *Manager) Open(uri, text string, version int32) Mode {
	return m.Update(uri, text, version)
}

// Update replaces the whole text of a document, opening it if needed.
func (m *Manager) Update(uri, text string, version int32) Mode {
	e := m.docs[uri]
	if e == nil {
		e = &entry{mode: Unparsed}
		m.docs[uri] = e
	}
	m.snapshot(e, uri, text, version)

	tree, err := m.parse([]byte(text), nil)
	if err != nil {
		m.degrade(e, err)
		return e.mode
	}
	m.install(e, tree)
	return e.mode
}

// UpdateIncremental applies LSP content changes, in order, to the stored
// text. A change without a range replaces the whole text. The existing tree
// is edited and reparsed; without a current tree, or before the parser is
// ready, this is a full update.
func (m *Manager) UpdateIncremental(uri string, version int32, changes []protocol.TextDocumentContentChangeEvent) (Mode, error) {
	e := m.docs[uri]
	if e == nil {
		return Closed, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}

	text := []byte(e.doc.Text)
	var edits []syntax.Edit
	whole := false
	for _, c := range changes {
		if c.Range == nil {
			text, edits, whole = []byte(c.Text), nil, true
			continue
		}
		lines := NewLineIndex(string(text))
		start, end := lines.Offset(c.Range.Start), lines.Offset(c.Range.End)
		if end < start {
			start, end = end, start
		}
		edits = append(edits, syntax.EditFor(text, start, end, c.Text))
		text = syntax.ApplyEdit(text, start, end, c.Text)
	}

	if whole || e.tree == nil || e.mode != Structural || !m.parser.Ready() {
		return m.Update(uri, string(text), version), nil
	}

	m.snapshot(e, uri, string(text), version)
	old := e.tree
	for _, edit := range edits {
		if err := old.Edit(edit); err != nil {
			m.degrade(e, fmt.Errorf("edit tree: %w", err))
			return e.mode, nil
		}
	}
	tree, err := m.parse(text, old)
	if err != nil {
		m.degrade(e, err)
		return e.mode, nil
	}
	m.install(e, tree)
	return e.mode, nil
}

// Close releases the document's tree and forgets it. It reports whether the
// document was open.
func (m *Manager) Close(uri string) bool {
	e := m.docs[uri]
	if e == nil {
		return false
	}
	if e.tree != nil {
		if err := e.tree.Release(); err != nil {
			log.Warningf("%s: release tree: %s", uri, err)
		}
	}
	e.tree, e.mode = nil, Closed
	delete(m.docs, uri)
	return true
}

func (m *Manager) snapshot(e *entry, uri, text string, version int32) {
	e.doc = Document{URI: uri, Text: text, Version: version}
	e.lines = NewLineIndex(text)
}

// parse runs a full parse, or a reparse when old is set. Parser panics come
// back as errors.
func (m *Manager) parse(text []byte, old *syntax.Tree) (tree *syntax.Tree, err error) {
	defer func() {
		if r := recover(); r != nil {
			tree, err = nil, fmt.Errorf("document: parse: panic: %v", r)
		}
	}()
	if old != nil {
		return m.parser.Reparse(text, old)
	}
	return m.parser.Parse(text)
}

// install extracts facts from a new tree and, on success, makes it current.
// The previous tree is released only after the new one has replaced it.
func (m *Manager) install(e *entry, tree *syntax.Tree) {
	set, err := facts.Extract(m.structural, facts.Input{URI: e.doc.URI, Text: []byte(e.doc.Text), Tree: tree})
	if err != nil {
		if rerr := tree.Release(); rerr != nil {
			log.Warningf("%s: release rejected tree: %s", e.doc.URI, rerr)
		}
		m.degrade(e, err)
		return
	}
	old := e.tree
	e.tree, e.facts, e.mode = tree, set, Structural
	if old != nil {
		if err := old.Release(); err != nil {
			log.Warningf("%s: release previous tree: %s", e.doc.URI, err)
		}
	}
}

// degrade keeps the current tree and recomputes facts from the text.
func (m *Manager) degrade(e *entry, cause error) {
	log.Warningf("%s: structural analysis failed, using textual fallback: %s", e.doc.URI, cause)
	set, err := facts.Extract(m.fallback, facts.Input{URI: e.doc.URI, Text: []byte(e.doc.Text)})
	if err != nil {
		log.Errorf("%s: textual fallback failed: %s", e.doc.URI, err)
		set = facts.Set{}
	}
	e.facts = set
	if e.tree != nil {
		e.mode = Stale
	} else {
		e.mode = Unparsed
	}
}

// Tree returns the document's tree, which may be stale, or nil.
func (m *Manager) Tree(uri string) *syntax.Tree {
	if e := m.docs[uri]; e != nil {
		return e.tree
	}
	return nil
}

// CurrentTree returns the tree only when it matches the document text.
func (m *Manager) CurrentTree(uri string) *syntax.Tree {
	if e := m.docs[uri]; e != nil && e.mode == Structural {
		return e.tree
	}
	return nil
}

// TreeFor returns the current tree of uri if the stored version equals
// version.
func (m *Manager) TreeFor(uri string, version int32) (*syntax.Tree, bool) {
	e := m.docs[uri]
	if e == nil || e.mode != Structural || e.doc.Version != version {
		return nil, false
	}
	return e.tree, true
}

func (m *Manager) Document(uri string) (Document, bool) {
	if e := m.docs[uri]; e != nil {
		return e.doc, true
	}
	return Document{}, false
}

// Lines returns the line index of the current text.
func (m *Manager) Lines(uri string) *LineIndex {
	if e := m.docs[uri]; e != nil {
		return e.lines
	}
	return nil
}

func (m *Manager) Mode(uri string) Mode {
	if e := m.docs[uri]; e != nil {
		return e.mode
	}
	return Closed
}

func (m *Manager) Facts(uri string) (facts.Set, bool) {
	if e := m.docs[uri]; e != nil {
		return e.facts, true
	}
	return facts.Set{}, false
}

func (m *Manager) Threads(uri string) []facts.Thread {
	set, _ := m.Facts(uri)
	return set.Threads
}

func (m *Manager) Labels(uri string) []facts.Label {
	set, _ := m.Facts(uri)
	return set.Labels
}

func (m *Manager) Variables(uri string) []facts.Variable {
	set, _ := m.Facts(uri)
	return set.Variables
}

func (m *Manager) Calls(uri string) []facts.Call {
	set, _ := m.Facts(uri)
	return set.Calls
}

func (m *Manager) Gotos(uri string) []facts.Goto {
	set, _ := m.Facts(uri)
	return set.Gotos
}

// All returns the URIs of all open documents, sorted.
func (m *Manager) All() []string {
	uris := make([]string, 0, len(m.docs))
	for uri := range m.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

func (m *Manager) IsOpen(uri string) bool { return m.docs[uri] != nil }

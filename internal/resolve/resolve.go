// Package resolve answers navigation requests against the workspace:
// go-to-definition, find-references and rename.
//
// Positions and ranges use LSP conventions (UTF-16 columns). A cursor is
// classified from the syntax tree when the document has a current one, and
// from the line text otherwise. Misses are empty results, not errors.
package resolve

import (
	"errors"
	"sort"
	"strings"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/document"
	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/index"
	"github.com/jward/morpheus/internal/syntax"
)

var log = commonlog.GetLogger("morpheus.resolve")

var (
	// ErrInvalidName is returned when a new name is not an identifier or a
	// scope-qualified identifier.
	ErrInvalidName = errors.New("resolve: invalid name")

	// ErrReservedName is returned when the symbol or the new name is a
	// reserved word.
	ErrReservedName = errors.New("resolve: reserved name")
)

// Documents gives access to open documents. *document.Manager implements it.
type Documents interface {
	Document(uri string) (document.Document, bool)
	Lines(uri string) *document.LineIndex
	CurrentTree(uri string) *syntax.Tree
	All() []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithReserved adds words that can never be renamed or used as new names,
// on top of the language keywords.
func WithReserved(words ...string) Option {
	return func(r *Resolver) {
		for _, w := range words {
			r.reserved[strings.ToLower(w)] = true
		}
	}
}

// Resolver implements the navigation providers.
type Resolver struct {
	docs       Documents
	index      *index.Index
	structural facts.Extractor
	fallback   facts.Extractor
	reserved   map[string]bool
}

func New(docs Documents, idx *index.Index, structural, fallback facts.Extractor, opts ...Option) *Resolver {
	r := &Resolver{
		docs:       docs,
		index:      idx,
		structural: structural,
		fallback:   fallback,
		reserved:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsReserved reports whether word is a keyword or an extra reserved word.
func (r *Resolver) IsReserved(word string) bool {
	w := strings.ToLower(word)
	return syntax.IsKeyword(w) || r.reserved[w]
}

// source is the text of a tracked document, with its tree when current.
type source struct {
	uri   string
	text  []byte
	lines *document.LineIndex
	tree  *syntax.Tree
}

// source prefers the open document over the indexed copy.
func (r *Resolver) source(uri string) (source, bool) {
	if doc, ok := r.docs.Document(uri); ok {
		return source{uri: uri, text: []byte(doc.Text), lines: r.docs.Lines(uri), tree: r.docs.CurrentTree(uri)}, true
	}
	if doc, ok := r.index.Document(uri); ok {
		return source{uri: uri, text: []byte(doc.Text), lines: document.NewLineIndex(doc.Text)}, true
	}
	return source{}, false
}

// tracked returns every open or indexed URI, sorted.
func (r *Resolver) tracked() []string {
	seen := make(map[string]bool)
	var uris []string
	for _, u := range append(r.docs.All(), r.index.Documents()...) {
		if !seen[u] {
			seen[u] = true
			uris = append(uris, u)
		}
	}
	sort.Strings(uris)
	return uris
}

func (r *Resolver) location(uri string, rg syntax.Range) (protocol.Location, bool) {
	src, ok := r.source(uri)
	if !ok {
		return protocol.Location{}, false
	}
	return protocol.Location{URI: protocol.DocumentUri(uri), Range: src.lines.Range(rg)}, true
}

// symbolLocation points at a symbol's name; variables include their scope.
func (r *Resolver) symbolLocation(s index.Symbol) (protocol.Location, bool) {
	if s.Kind == index.KindVariable {
		return r.location(s.URI, s.Range)
	}
	return r.location(s.URI, s.NameRange)
}

func (r *Resolver) symbolLocations(syms []index.Symbol) []protocol.Location {
	var out []protocol.Location
	for _, s := range syms {
		if loc, ok := r.symbolLocation(s); ok {
			out = append(out, loc)
		}
	}
	return out
}

func sortLocations(locs []protocol.Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		a, b := locs[i], locs[j]
		if a.URI != b.URI {
			return a.URI < b.URI
		}
		if a.Range.Start.Line != b.Range.Start.Line {
			return a.Range.Start.Line < b.Range.Start.Line
		}
		return a.Range.Start.Character < b.Range.Start.Character
	})
}

// Package index is the workspace symbol index: every thread, label and
// scoped variable defined across the tracked documents, and every reference
// to them.
//
// Names are matched without regard to case. Threads and labels are keyed by
// their bare name, variables by "scope.name". Indexing a document first
// removes everything it contributed before, so the global tables always equal
// the union of the per-document extractions.
package index

import (
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tliron/commonlog"

	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/syntax"
)

var log = commonlog.GetLogger("morpheus.index")

// DefaultPathCacheSize bounds the ResolvePath cache.
const DefaultPathCacheSize = 256

// Kind is the kind of a symbol.
type Kind string

const (
	KindThread   Kind = "thread"
	KindLabel    Kind = "label"
	KindVariable Kind = "variable"
)

// Context says how a reference uses its symbol.
type Context string

const (
	ContextCall          Context = "call"
	ContextGoto          Context = "goto"
	ContextAssignment    Context = "assignment"
	ContextRead          Context = "read"
	ContextCrossFileCall Context = "cross-file-call"
	ContextLabel         Context = "label"
	ContextDefinition    Context = "definition"
)

// Symbol is a definition site.
type Symbol struct {
	Name      string // bare name as written
	Kind      Kind
	Scope     string // variables only
	Container string // enclosing thread of labels and thread-local variables
	URI       string
	Range     syntax.Range
	NameRange syntax.Range
	Params    []string // threads only
}

// Key is the index key of the symbol.
func (s Symbol) Key() string {
	if s.Kind == KindVariable {
		return facts.VariableKey(s.Scope, s.Name)
	}
	return strings.ToLower(s.Name)
}

// Reference is one occurrence of a symbol name. Range covers the whole
// occurrence ("local.counter", "util.scr::setup"); NameRange covers the bare
// name only.
type Reference struct {
	URI           string
	Name          string
	Range         syntax.Range
	NameRange     syntax.Range
	IsDefinition  bool
	IsDeclaration bool
	Context       Context
	Scope         string
	Container     string
}

// Key is the index key of the referenced symbol.
func (r Reference) Key() string {
	if r.Scope != "" {
		return facts.VariableKey(r.Scope, r.Name)
	}
	return strings.ToLower(r.Name)
}

// IndexedDocument is what one document contributes to the index.
type IndexedDocument struct {
	URI        string
	Version    int32
	Text       string
	Symbols    []Symbol
	References map[string][]Reference
}

// Stats summarises a name across the workspace.
type Stats struct {
	Name         string
	Definitions  int
	References   int
	Declarations int
	Files        []string
}

// Parser produces throwaway trees for documents the TreeSource does not
// hold. *syntax.Service implements it.
type Parser interface {
	Ready() bool
	Parse(text []byte) (*syntax.Tree, error)
}

// TreeSource lends the current tree of a document at a given version. The
// index never releases a lent tree.
type TreeSource interface {
	TreeFor(uri string, version int32) (*syntax.Tree, bool)
}

// Option configures an Index.
type Option func(*Index)

// WithTreeSource lets the index reuse trees the caller already holds.
func WithTreeSource(ts TreeSource) Option {
	return func(x *Index) { x.trees = ts }
}

// WithPathCacheSize sets the ResolvePath cache size.
func WithPathCacheSize(n int) Option {
	return func(x *Index) { x.pathCacheSize = n }
}

// Index is the workspace symbol index. It is not safe for concurrent use.
type Index struct {
	parser     Parser
	structural facts.Extractor
	fallback   facts.Extractor
	trees      TreeSource

	docs  map[string]*IndexedDocument
	order []string // URIs in first-indexed order

	definitions map[string][]Symbol
	references  map[string][]Reference

	pathCacheSize int
	paths         *lru.Cache[string, []string]
}

// New creates an empty Index.
func New(parser Parser, structural, fallback facts.Extractor, opts ...Option) *Index {
	x := &Index{
		parser:        parser,
		structural:    structural,
		fallback:      fallback,
		docs:          make(map[string]*IndexedDocument),
		definitions:   make(map[string][]Symbol),
		references:    make(map[string][]Reference),
		pathCacheSize: DefaultPathCacheSize,
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.pathCacheSize <= 0 {
		x.pathCacheSize = DefaultPathCacheSize
	}
	x.paths, _ = lru.New[string, []string](x.pathCacheSize)
	return x
}

// IndexDocument extracts and indexes a document. It is a no-op when the
// document is already indexed at version.
func (x *Index) IndexDocument(uri string, version int32, text string) {
	if doc := x.docs[uri]; doc != nil && doc.Version == version {
		return
	}
	x.Apply(uri, version, text, x.extract(uri, version, text))
}

// Apply replaces the document's contributions with set, which must have
// been extracted from text. Apply does not check the version.
func (x *Index) Apply(uri string, version int32, text string, set facts.Set) {
	x.remove(uri)

	doc := &IndexedDocument{
		URI:        uri,
		Version:    version,
		Text:       text,
		References: make(map[string][]Reference),
	}
	doc.Symbols = symbols(uri, set)
	for _, ref := range references(uri, set) {
		key := ref.Key()
		doc.References[key] = append(doc.References[key], ref)
	}

	if _, seen := x.docs[uri]; !seen {
		x.order = append(x.order, uri)
	}
	x.docs[uri] = doc

	// A re-indexed document keeps its place in the first-indexed order.
	rank := make(map[string]int, len(x.order))
	for i, u := range x.order {
		rank[u] = i
	}
	for _, s := range doc.Symbols {
		key := s.Key()
		defs := append(x.definitions[key], s)
		sort.SliceStable(defs, func(i, j int) bool { return rank[defs[i].URI] < rank[defs[j].URI] })
		x.definitions[key] = defs
	}
	for key, refs := range doc.References {
		all := append(x.references[key], refs...)
		sort.SliceStable(all, func(i, j int) bool { return rank[all[i].URI] < rank[all[j].URI] })
		x.references[key] = all
	}
	x.paths.Purge()
	log.Debugf("indexed %s@%d: %d symbols, %d names referenced", uri, version, len(doc.Symbols), len(doc.References))
}

// RemoveDocument drops everything uri contributed.
func (x *Index) RemoveDocument(uri string) bool {
	if !x.remove(uri) {
		return false
	}
	delete(x.docs, uri)
	for i, u := range x.order {
		if u == uri {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
	log.Debugf("removed %s", uri)
	return true
}

// remove purges the global tables of uri but keeps its slot in the
// document order.
func (x *Index) remove(uri string) bool {
	doc := x.docs[uri]
	if doc == nil {
		return false
	}
	for _, s := range doc.Symbols {
		key := s.Key()
		if kept := withoutURI(x.definitions[key], uri, func(s Symbol) string { return s.URI }); len(kept) > 0 {
			x.definitions[key] = kept
		} else {
			delete(x.definitions, key)
		}
	}
	for key := range doc.References {
		if kept := withoutURI(x.references[key], uri, func(r Reference) string { return r.URI }); len(kept) > 0 {
			x.references[key] = kept
		} else {
			delete(x.references, key)
		}
	}
	x.paths.Purge()
	return true
}

func withoutURI[T any](items []T, uri string, uriOf func(T) string) []T {
	var kept []T
	for _, it := range items {
		if uriOf(it) != uri {
			kept = append(kept, it)
		}
	}
	return kept
}

// extract runs the structural extractor over a borrowed or temporary tree
// and falls back to the textual one.
func (x *Index) extract(uri string, version int32, text string) facts.Set {
	in := facts.Input{URI: uri, Text: []byte(text)}
	if x.trees != nil {
		if tree, ok := x.trees.TreeFor(uri, version); ok && tree != nil {
			in.Tree = tree
			set, err := facts.Extract(x.structural, in)
			if err == nil {
				return set
			}
			log.Warningf("%s: structural extraction failed, using textual fallback: %s", uri, err)
			return x.extractText(in)
		}
	}
	if x.parser != nil && x.parser.Ready() {
		set, err := x.extractTemporary(in)
		if err == nil {
			return set
		}
		log.Warningf("%s: structural analysis failed, using textual fallback: %s", uri, err)
	}
	return x.extractText(in)
}

// extractTemporary parses in.Text and releases the tree once the facts are
// out.
func (x *Index) extractTemporary(in facts.Input) (facts.Set, error) {
	tree, err := parse(x.parser, in.Text)
	if err != nil {
		return facts.Set{}, err
	}
	defer func() {
		if err := tree.Release(); err != nil {
			log.Warningf("%s: release temporary tree: %s", in.URI, err)
		}
	}()
	in.Tree = tree
	return facts.Extract(x.structural, in)
}

func (x *Index) extractText(in facts.Input) facts.Set {
	in.Tree = nil
	set, err := facts.Extract(x.fallback, in)
	if err != nil {
		log.Errorf("%s: textual fallback failed: %s", in.URI, err)
	}
	return set
}

func parse(p Parser, text []byte) (tree *syntax.Tree, err error) {
	defer func() {
		if r := recover(); r != nil {
			tree, err = nil, fmt.Errorf("index: parse: panic: %v", r)
		}
	}()
	return p.Parse(text)
}

// FindDefinition returns the first indexed definition of name.
func (x *Index) FindDefinition(name string) (Symbol, bool) {
	defs := x.definitions[strings.ToLower(name)]
	if len(defs) == 0 {
		return Symbol{}, false
	}
	return defs[0], true
}

// FindAllDefinitions returns every definition of name in indexing order.
func (x *Index) FindAllDefinitions(name string) []Symbol {
	return append([]Symbol(nil), x.definitions[strings.ToLower(name)]...)
}

// FindReferences returns every reference to name. Definition and
// declaration sites are left out unless includeDeclaration is set.
func (x *Index) FindReferences(name string, includeDeclaration bool) []Reference {
	var out []Reference
	for _, r := range x.references[strings.ToLower(name)] {
		if !includeDeclaration && (r.IsDefinition || r.IsDeclaration) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SymbolStats counts the definitions and references of name.
func (x *Index) SymbolStats(name string) Stats {
	key := strings.ToLower(name)
	st := Stats{Name: key, Definitions: len(x.definitions[key])}
	files := make(map[string]bool)
	for _, s := range x.definitions[key] {
		files[s.URI] = true
	}
	for _, r := range x.references[key] {
		files[r.URI] = true
		if r.IsDefinition || r.IsDeclaration {
			st.Declarations++
		} else {
			st.References++
		}
	}
	for f := range files {
		st.Files = append(st.Files, f)
	}
	sort.Strings(st.Files)
	return st
}

// Documents returns the indexed URIs in first-indexed order.
func (x *Index) Documents() []string {
	return append([]string(nil), x.order...)
}

func (x *Index) Document(uri string) (*IndexedDocument, bool) {
	doc, ok := x.docs[uri]
	return doc, ok
}

// Names returns every defined key, sorted.
func (x *Index) Names() []string {
	return sortedKeys(x.definitions)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

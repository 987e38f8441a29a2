package morpheus

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/document"
	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/index"
	"github.com/jward/morpheus/internal/resolve"
	"github.com/jward/morpheus/internal/syntax"
)

// DiskVersion is the version given to documents loaded from disk rather than
// opened by a client.
const DiskVersion int32 = -1

// Engine is one analysis session: a parse service, the open documents, the
// workspace index and the navigation providers built on them.
type Engine struct {
	mu sync.Mutex

	svc        *syntax.Service
	structural *facts.Structural
	textual    *facts.Textual
	docs       *document.Manager
	index      *index.Index
	resolver   *resolve.Resolver

	log           commonlog.Logger
	reserved      []string
	pathCacheSize int
	extensions    []string
	workers       int

	// loaded holds URIs indexed from disk and the sha256 of their content.
	loaded map[string]string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the engine's logger.
func WithLogger(l commonlog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithReserved adds words that may not be used as rename targets.
func WithReserved(words ...string) Option {
	return func(e *Engine) { e.reserved = append(e.reserved, words...) }
}

// WithPathCacheSize bounds the script path resolution cache.
func WithPathCacheSize(n int) Option {
	return func(e *Engine) { e.pathCacheSize = n }
}

// WithExtensions sets the file extensions LoadDirectory picks up. The
// default is ".scr".
func WithExtensions(exts ...string) Option {
	return func(e *Engine) { e.extensions = exts }
}

// WithWorkers sets the number of LoadDirectory parse workers. Zero or less
// means one per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// New creates an Engine. The grammar is not loaded until Init; until then
// every document is analysed by the textual extractor.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:        commonlog.GetLogger("morpheus"),
		extensions: []string{".scr"},
		loaded:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.structural = facts.NewStructural()
	e.textual = facts.NewTextual()
	e.svc = syntax.NewService(syntax.WithInitHook(e.structural.Load))
	e.docs = document.NewManager(e.svc, e.structural, e.textual)
	e.index = index.New(e.svc, e.structural, e.textual,
		index.WithTreeSource(e.docs),
		index.WithPathCacheSize(e.pathCacheSize),
	)
	e.resolver = resolve.New(e.docs, e.index, e.structural, e.textual, resolve.WithReserved(e.reserved...))
	return e
}

// Init loads the grammar and compiles the queries. It is safe to call from
// several goroutines; they share one load.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.svc.Init(ctx); err != nil {
		return fmt.Errorf("morpheus: init: %w", err)
	}
	return nil
}

// Ready reports whether Init has completed.
func (e *Engine) Ready() bool { return e.svc.Ready() }

// Parse parses text outside any document. The caller owns the tree and
// must Release it.
func (e *Engine) Parse(text []byte) (*Tree, error) {
	return e.svc.Parse(text)
}

// Close releases every open document.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, uri := range e.docs.All() {
		e.docs.Close(uri)
	}
}

// =============================================================================
// Document lifecycle
// =============================================================================

// OpenDocument starts tracking a document and indexes it.
func (e *Engine) OpenDocument(uri, text string, version int32) Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	mode := e.docs.Open(uri, text, version)
	e.index.IndexDocument(uri, version, text)
	e.log.Debugf("opened %s@%d (%s)", uri, version, mode)
	return mode
}

// UpdateDocument replaces a document's text.
func (e *Engine) UpdateDocument(uri, text string, version int32) Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	mode := e.docs.Update(uri, text, version)
	e.index.IndexDocument(uri, version, text)
	return mode
}

// UpdateDocumentIncremental applies LSP content changes in order and
// reparses from the previous tree.
func (e *Engine) UpdateDocumentIncremental(uri string, version int32, changes []protocol.TextDocumentContentChangeEvent) (Mode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mode, err := e.docs.UpdateIncremental(uri, version, changes)
	if err != nil {
		return mode, err
	}
	if doc, ok := e.docs.Document(uri); ok {
		e.index.IndexDocument(uri, version, doc.Text)
	}
	return mode, nil
}

// CloseDocument stops tracking a document and releases its tree. A document
// that was also loaded from disk goes back to its on-disk content in the
// index; any other document leaves the index.
func (e *Engine) CloseDocument(uri string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.docs.Close(uri) {
		return false
	}
	e.index.RemoveDocument(uri)
	if _, ok := e.loaded[uri]; ok {
		e.reload(uri)
	}
	return true
}

// reload re-indexes a disk document. The caller holds e.mu.
func (e *Engine) reload(uri string) {
	path, err := pathFromURI(uri)
	if err != nil {
		e.log.Warningf("%s: %s", uri, err)
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		e.log.Warningf("reload %s: %s", path, err)
		delete(e.loaded, uri)
		return
	}
	e.loaded[uri] = contentHash(content)
	e.index.IndexDocument(uri, DiskVersion, string(content))
}

// =============================================================================
// Document state
// =============================================================================

// GetTree returns the last good tree of an open document, which may be
// stale. The tree stays owned by the engine.
func (e *Engine) GetTree(uri string) *Tree {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.Tree(uri)
}

func (e *Engine) GetDocument(uri string) (Document, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.Document(uri)
}

// GetAllDocuments returns the URIs of the open documents, sorted.
func (e *Engine) GetAllDocuments() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.All()
}

// Mode returns the analysis state of a document.
func (e *Engine) Mode(uri string) Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.Mode(uri)
}

func (e *Engine) GetThreads(uri string) []Thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.Threads(uri)
}

func (e *Engine) GetLabels(uri string) []Label {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.Labels(uri)
}

func (e *Engine) GetVariables(uri string) []Variable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.Variables(uri)
}

// Diagnostics reports the syntax errors of an open document's current tree.
// Documents without a current tree have none.
func (e *Engine) Diagnostics(uri string) []protocol.Diagnostic {
	e.mu.Lock()
	defer e.mu.Unlock()
	tree := e.docs.CurrentTree(uri)
	lines := e.docs.Lines(uri)
	if tree == nil || lines == nil {
		return nil
	}
	severity := protocol.DiagnosticSeverityError
	source := "morpheus"
	var out []protocol.Diagnostic
	for _, en := range syntax.CollectErrors(tree) {
		out = append(out, protocol.Diagnostic{
			Range:    lines.Range(syntax.Range{Start: en.Start, End: en.End}),
			Severity: &severity,
			Source:   &source,
			Message:  en.Message,
		})
	}
	return out
}

// =============================================================================
// Index queries
// =============================================================================

// FindDefinition returns the first indexed definition of name.
func (e *Engine) FindDefinition(name string) (Symbol, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.FindDefinition(name)
}

func (e *Engine) FindAllDefinitions(name string) []Symbol {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.FindAllDefinitions(name)
}

func (e *Engine) FindReferences(name string, includeDeclaration bool) []Reference {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.FindReferences(name, includeDeclaration)
}

func (e *Engine) GetSymbolStats(name string) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.SymbolStats(name)
}

// Suggest returns up to limit defined names close to name.
func (e *Engine) Suggest(name string, limit int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Suggest(name, limit)
}

// Names returns every defined index key, sorted.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Names()
}

// IndexedDocuments returns every indexed URI, open or loaded from disk, in
// the order they were first indexed.
func (e *Engine) IndexedDocuments() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Documents()
}

// IndexedSymbols returns the definitions a document contributes to the
// index.
func (e *Engine) IndexedSymbols(uri string) []Symbol {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.index.Document(uri)
	if !ok {
		return nil
	}
	return append([]Symbol(nil), doc.Symbols...)
}

// =============================================================================
// Providers
// =============================================================================

func (e *Engine) ProvideDefinition(uri string, pos protocol.Position) []protocol.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.Definition(uri, pos)
}

func (e *Engine) ProvideReferences(uri string, pos protocol.Position, includeDeclaration bool) []protocol.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.References(uri, pos, includeDeclaration)
}

// PrepareRename returns the range of the symbol under the cursor, or nil
// when there is nothing renamable there.
func (e *Engine) PrepareRename(uri string, pos protocol.Position) (*protocol.Range, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.PrepareRename(uri, pos)
}

// Rename computes the edits renaming the symbol under the cursor to newName.
// The edits are not applied.
func (e *Engine) Rename(uri string, pos protocol.Position, newName string) (*protocol.WorkspaceEdit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.Rename(uri, pos, newName)
}

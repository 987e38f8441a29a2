// Package runtime embeds a Risor VM for workspace scripts: small programs
// that query the symbol index, parse snippets and read snapshot databases.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/index"
	"github.com/jward/morpheus/internal/store"
	"github.com/jward/morpheus/internal/syntax"
)

var log = commonlog.GetLogger("morpheus.runtime")

// Workspace is the view of an analysis session scripts can query.
// *morpheus.Engine implements it.
type Workspace interface {
	Names() []string
	IndexedDocuments() []string
	IndexedSymbols(uri string) []index.Symbol
	FindAllDefinitions(name string) []index.Symbol
	FindReferences(name string, includeDeclaration bool) []index.Reference
	GetSymbolStats(name string) index.Stats
	Suggest(name string, limit int) []string
	Diagnostics(uri string) []protocol.Diagnostic
}

// Parser hands out trees for parse and parse_src. *syntax.Service
// implements it.
type Parser interface {
	Parse(text []byte) (*syntax.Tree, error)
}

// Runtime runs Risor scripts with host functions over a Workspace.
type Runtime struct {
	ws         Workspace
	parser     Parser
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	sources    *sourceStore
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts and Risor imports from fsys instead of disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithParser enables the parse, parse_src and query host functions.
func WithParser(p Parser) RuntimeOption {
	return func(r *Runtime) { r.parser = p }
}

// WithStore exposes a snapshot database to scripts.
func WithStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) { r.store = s }
}

// NewRuntime creates a Runtime over ws. Relative script paths resolve
// against scriptsDir.
func NewRuntime(ws Workspace, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		ws:         ws,
		scriptsDir: scriptsDir,
		sources:    newSourceStore(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases every tree scripts parsed.
func (r *Runtime) Close() {
	r.sources.releaseAll()
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller. It returns the value of
// the script's last expression.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (any, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (any, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (any, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	if result == nil {
		return nil, nil
	}
	return result.Interface(), nil
}

// buildImporter returns a Risor importer for the Runtime's script source,
// or nil when neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file from the configured fs.FS, or from disk
// relative to scriptsDir.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{}),
	}

	if r.ws != nil {
		globals["names"] = makeNamesFn(r.ws)
		globals["documents"] = makeDocumentsFn(r.ws)
		globals["symbols"] = makeSymbolsFn(r.ws)
		globals["definitions"] = makeDefinitionsFn(r.ws)
		globals["references"] = makeReferencesFn(r.ws)
		globals["stats"] = makeStatsFn(r.ws)
		globals["suggest"] = makeSuggestFn(r.ws)
		globals["diagnostics"] = makeDiagnosticsFn(r.ws)
	}

	if r.parser != nil {
		globals["parse"] = makeParseFn(r.parser, r.sources)
		globals["parse_src"] = makeParseSrcFn(r.parser, r.sources)
		globals["node_text"] = makeNodeTextFn(r.sources)
		globals["node_child"] = makeNodeChildFn()
		globals["query"] = makeQueryFn(r.sources)
	}

	// Snapshot access; Risor cannot build Go structs, so these return maps.
	if r.store != nil {
		globals["db_symbols"] = makeStoreSymbolsFn(r.store)
		globals["db_symbols_by_kind"] = makeStoreSymbolsByKindFn(r.store)
		globals["db_references"] = makeStoreReferencesFn(r.store)
		globals["db_files"] = makeStoreFilesFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

package lsp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus"
)

func testServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	e := morpheus.New(morpheus.WithReserved("waitframe"))
	t.Cleanup(e.Close)
	s := New(e, append([]Option{WithWorkspaceLoad(false)}, opts...)...)
	_, err := s.initialize(mockContext(), &protocol.InitializeParams{})
	require.NoError(t, err)
	return s
}

func mockContext() *glsp.Context {
	return &glsp.Context{
		Notify: func(method string, params any) {},
	}
}

// capturingContext records every published diagnostics notification.
func capturingContext() (*glsp.Context, *[]protocol.PublishDiagnosticsParams) {
	var captured []protocol.PublishDiagnosticsParams
	ctx := &glsp.Context{
		Notify: func(method string, params any) {
			if method == protocol.ServerTextDocumentPublishDiagnostics {
				captured = append(captured, params.(protocol.PublishDiagnosticsParams))
			}
		},
	}
	return ctx, &captured
}

func openDoc(t *testing.T, s *Server, uri, text string) {
	t.Helper()
	require.NoError(t, s.textDocumentDidOpen(mockContext(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "morpheus", Version: 1, Text: text},
	}))
}

func at(uri string, line, char int) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position:     protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)},
	}
}

// --- Lifecycle ---

func TestInitialize_Capabilities(t *testing.T) {
	e := morpheus.New()
	t.Cleanup(e.Close)
	s := New(e, WithWorkspaceLoad(false))

	result, err := s.initialize(mockContext(), &protocol.InitializeParams{})
	require.NoError(t, err)
	assert.True(t, e.Ready())

	res, ok := result.(protocol.InitializeResult)
	require.True(t, ok, "got %T", result)
	require.NotNil(t, res.ServerInfo)
	assert.Equal(t, "morpheus", res.ServerInfo.Name)

	sync, ok := res.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	require.True(t, ok)
	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, *sync.Change)

	rename, ok := res.Capabilities.RenameProvider.(*protocol.RenameOptions)
	require.True(t, ok)
	assert.True(t, *rename.PrepareProvider)
	assert.NotNil(t, res.Capabilities.DefinitionProvider)
	assert.NotNil(t, res.Capabilities.ReferencesProvider)
}

func TestInitialize_LoadsWorkspace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "global"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "global", "util.scr"), []byte("setup:\n\tlevel.score = 0\nend\n"), 0o644))

	e := morpheus.New()
	t.Cleanup(e.Close)
	s := New(e)
	root, err := morpheus.URIFromPath(dir)
	require.NoError(t, err)

	_, err = s.initialize(mockContext(), &protocol.InitializeParams{RootURI: &root})
	require.NoError(t, err)
	s.Wait()

	_, ok := e.FindDefinition("setup")
	assert.True(t, ok)

	uri := root + "/main.scr"
	openDoc(t, s, uri, "main:\n\tthread setup\nend\n")
	result, err := s.textDocumentDefinition(mockContext(), &protocol.DefinitionParams{TextDocumentPositionParams: at(uri, 1, 9)})
	require.NoError(t, err)
	locs, ok := result.([]protocol.Location)
	require.True(t, ok, "got %T", result)
	require.Len(t, locs, 1)
	assert.Contains(t, locs[0].URI, "global/util.scr")
}

func TestShutdown_ClosesDocuments(t *testing.T) {
	s := testServer(t)
	openDoc(t, s, "file:///a.scr", "main:\nend\n")
	require.NoError(t, s.shutdown(mockContext()))
	assert.Empty(t, s.engine.GetAllDocuments())
}

// --- Text synchronisation ---

func TestDidOpen_PublishesDiagnostics(t *testing.T) {
	s := testServer(t)
	ctx, captured := capturingContext()

	require.NoError(t, s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///bad.scr", Version: 1, Text: "main:\n\tlocal.x =\nend\n"},
	}))
	require.Len(t, *captured, 1)
	assert.Equal(t, "file:///bad.scr", (*captured)[0].URI)
	assert.NotEmpty(t, (*captured)[0].Diagnostics)
}

func TestDidChange_ClearsDiagnostics(t *testing.T) {
	s := testServer(t)
	uri := "file:///a.scr"
	openDoc(t, s, uri, "main:\n\tlocal.x =\nend\n")
	ctx, captured := capturingContext()

	err := s.textDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []any{
			protocol.TextDocumentContentChangeEvent{
				Range: &protocol.Range{
					Start: protocol.Position{Line: 1, Character: 10},
					End:   protocol.Position{Line: 1, Character: 10},
				},
				Text: " 1",
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, *captured, 1)
	assert.NotNil(t, (*captured)[0].Diagnostics)
	assert.Empty(t, (*captured)[0].Diagnostics)

	doc, ok := s.engine.GetDocument(uri)
	require.True(t, ok)
	assert.Equal(t, "main:\n\tlocal.x = 1\nend\n", doc.Text)
}

func TestDidChange_WholeDocument(t *testing.T) {
	s := testServer(t)
	uri := "file:///a.scr"
	openDoc(t, s, uri, "main:\nend\n")

	err := s.textDocumentDidChange(mockContext(), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "other:\nend\n"}},
	})
	require.NoError(t, err)

	_, ok := s.engine.FindDefinition("other")
	assert.True(t, ok)
	_, ok = s.engine.FindDefinition("main")
	assert.False(t, ok)
}

func TestDidChange_UnknownEvent(t *testing.T) {
	s := testServer(t)
	openDoc(t, s, "file:///a.scr", "main:\nend\n")
	err := s.textDocumentDidChange(mockContext(), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "file:///a.scr"},
			Version:                2,
		},
		ContentChanges: []any{"nope"},
	})
	assert.Error(t, err)
}

func TestDidClose_ClearsDiagnostics(t *testing.T) {
	s := testServer(t)
	uri := "file:///a.scr"
	openDoc(t, s, uri, "main:\n\tlocal.x =\nend\n")
	ctx, captured := capturingContext()

	require.NoError(t, s.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	require.Len(t, *captured, 1)
	assert.Empty(t, (*captured)[0].Diagnostics)
	assert.Equal(t, morpheus.Closed, s.engine.Mode(uri))
}

// --- Navigation ---

func TestDefinition(t *testing.T) {
	s := testServer(t)
	uri := "file:///a.scr"
	openDoc(t, s, uri, "main:\n\tgoto retry\nretry:\nend\n")

	result, err := s.textDocumentDefinition(mockContext(), &protocol.DefinitionParams{TextDocumentPositionParams: at(uri, 1, 7)})
	require.NoError(t, err)
	locs, ok := result.([]protocol.Location)
	require.True(t, ok, "got %T", result)
	require.Len(t, locs, 1)
	assert.Equal(t, protocol.UInteger(2), locs[0].Range.Start.Line)
}

func TestDefinition_NothingUnderCursor(t *testing.T) {
	s := testServer(t)
	uri := "file:///a.scr"
	openDoc(t, s, uri, "main:\n\twait 1\nend\n")

	result, err := s.textDocumentDefinition(mockContext(), &protocol.DefinitionParams{TextDocumentPositionParams: at(uri, 1, 6)})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestReferences(t *testing.T) {
	s := testServer(t)
	uri := "file:///a.scr"
	openDoc(t, s, uri, "main:\n\tlocal.n = 1\n\tlocal.n = local.n + 1\nend\n")

	with, err := s.textDocumentReferences(mockContext(), &protocol.ReferenceParams{
		TextDocumentPositionParams: at(uri, 2, 17),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
	})
	require.NoError(t, err)
	without, err := s.textDocumentReferences(mockContext(), &protocol.ReferenceParams{
		TextDocumentPositionParams: at(uri, 2, 17),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: false},
	})
	require.NoError(t, err)
	assert.Len(t, with, 3)
	assert.Less(t, len(without), len(with))
}

func TestPrepareRename(t *testing.T) {
	s := testServer(t)
	uri := "file:///a.scr"
	openDoc(t, s, uri, "main:\n\tlocal.counter = 0\n\twaitframe\nend\n")

	result, err := s.textDocumentPrepareRename(mockContext(), &protocol.PrepareRenameParams{TextDocumentPositionParams: at(uri, 1, 9)})
	require.NoError(t, err)
	require.NotNil(t, result)
	rg, ok := result.(*protocol.Range)
	require.True(t, ok, "got %T", result)
	assert.Equal(t, protocol.UInteger(1), rg.Start.Line)

	_, err = s.textDocumentPrepareRename(mockContext(), &protocol.PrepareRenameParams{TextDocumentPositionParams: at(uri, 2, 3)})
	assert.ErrorIs(t, err, morpheus.ErrReservedName)
}

func TestRename(t *testing.T) {
	s := testServer(t)
	uri := "file:///a.scr"
	openDoc(t, s, uri, "main:\n\tlocal.counter = 0\n\tprintln local.counter\nend\n")

	edit, err := s.textDocumentRename(mockContext(), &protocol.RenameParams{
		TextDocumentPositionParams: at(uri, 2, 16),
		NewName:                    "total",
	})
	require.NoError(t, err)
	require.NotNil(t, edit)
	edits := edit.Changes[uri]
	require.Len(t, edits, 2)
	for _, ed := range edits {
		assert.Equal(t, "total", ed.NewText)
	}

	_, err = s.textDocumentRename(mockContext(), &protocol.RenameParams{
		TextDocumentPositionParams: at(uri, 2, 16),
		NewName:                    "1bad",
	})
	assert.ErrorIs(t, err, morpheus.ErrInvalidName)
}

package lsp

import (
	"context"
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus"
)

// =============================================================================
// Lifecycle
// =============================================================================

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if err := s.engine.Init(context.Background()); err != nil {
		return nil, err
	}

	if s.loadWorkspace {
		if root := rootPath(params); root != "" {
			s.startLoad(root)
		}
	}

	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
	}
	capabilities.RenameProvider = &protocol.RenameOptions{PrepareProvider: &protocol.True}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &lsVersion,
		},
	}, nil
}

func (s *Server) initialized(context *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.loading.Wait()
	s.engine.Close()
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// startLoad indexes the workspace in the background. Requests served in the
// meantime see whatever has been committed so far.
func (s *Server) startLoad(root string) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loading.Add(1)
	go func() {
		defer s.loading.Done()
		n, err := s.engine.LoadDirectory(ctx, root)
		if err != nil {
			s.log.Warningf("workspace load: %s", err)
		}
		s.log.Infof("indexed %d scripts under %s", n, root)
	}()
}

func rootPath(params *protocol.InitializeParams) string {
	if params.RootURI != nil && *params.RootURI != "" {
		path, err := morpheus.PathFromURI(*params.RootURI)
		if err == nil {
			return path
		}
	}
	if params.RootPath != nil {
		return *params.RootPath
	}
	return ""
}

// =============================================================================
// Text synchronisation
// =============================================================================

func (s *Server) textDocumentDidOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := params.TextDocument
	s.engine.OpenDocument(doc.URI, doc.Text, doc.Version)
	s.publishDiagnostics(context, doc.URI)
	return nil
}

func (s *Server) textDocumentDidChange(context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	changes := make([]protocol.TextDocumentContentChangeEvent, 0, len(params.ContentChanges))
	for _, raw := range params.ContentChanges {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			changes = append(changes, change)
		case protocol.TextDocumentContentChangeEventWhole:
			changes = append(changes, protocol.TextDocumentContentChangeEvent{Text: change.Text})
		default:
			return fmt.Errorf("lsp: unexpected change event type %T", raw)
		}
	}
	if _, err := s.engine.UpdateDocumentIncremental(uri, params.TextDocument.Version, changes); err != nil {
		return fmt.Errorf("lsp: %s: %w", uri, err)
	}
	s.publishDiagnostics(context, uri)
	return nil
}

func (s *Server) textDocumentDidClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	if s.engine.CloseDocument(uri) {
		notify(context, uri, nil)
	}
	return nil
}

func (s *Server) publishDiagnostics(context *glsp.Context, uri string) {
	notify(context, uri, s.engine.Diagnostics(uri))
}

// notify always sends a list so that a clean document clears its markers.
func notify(context *glsp.Context, uri string, diagnostics []protocol.Diagnostic) {
	if context == nil || context.Notify == nil {
		return
	}
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	context.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// =============================================================================
// Navigation
// =============================================================================

func (s *Server) textDocumentDefinition(context *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	locs := s.engine.ProvideDefinition(params.TextDocument.URI, params.Position)
	if len(locs) == 0 {
		return nil, nil
	}
	return locs, nil
}

func (s *Server) textDocumentReferences(context *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	return s.engine.ProvideReferences(params.TextDocument.URI, params.Position, params.Context.IncludeDeclaration), nil
}

// textDocumentPrepareRename answers null for positions with nothing to
// rename and an error for reserved words, so the client can say why.
func (s *Server) textDocumentPrepareRename(context *glsp.Context, params *protocol.PrepareRenameParams) (any, error) {
	rg, err := s.engine.PrepareRename(params.TextDocument.URI, params.Position)
	if err != nil {
		return nil, err
	}
	if rg == nil {
		return nil, nil
	}
	return rg, nil
}

func (s *Server) textDocumentRename(context *glsp.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	return s.engine.Rename(params.TextDocument.URI, params.Position, params.NewName)
}

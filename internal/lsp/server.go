// Package lsp serves an Engine over the language server protocol on stdio.
//
// The server keeps capability negotiation minimal: incremental text sync,
// definition, references and rename with prepare. Diagnostics are pushed
// after every open and change.
package lsp

import (
	"context"
	"sync"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/jward/morpheus"
)

const lsName = "morpheus"

var lsVersion = "0.1.0"

// Server dispatches protocol requests to an Engine.
type Server struct {
	engine  *morpheus.Engine
	handler protocol.Handler
	log     commonlog.Logger
	debug   bool

	// loadWorkspace makes initialize index the client's root folder.
	loadWorkspace bool
	loading       sync.WaitGroup
	cancel        context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithWorkspaceLoad controls whether initialize loads every script under
// the client's root folder into the index. It is on by default.
func WithWorkspaceLoad(on bool) Option {
	return func(s *Server) { s.loadWorkspace = on }
}

// WithDebug turns on protocol message logging.
func WithDebug(on bool) Option {
	return func(s *Server) { s.debug = on }
}

// New creates a Server over engine. The engine is initialised by the
// initialize request if it is not already.
func New(engine *morpheus.Engine, opts ...Option) *Server {
	s := &Server{
		engine:        engine,
		log:           commonlog.GetLogger("morpheus.lsp"),
		loadWorkspace: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = protocol.Handler{
		Initialize:                s.initialize,
		Initialized:               s.initialized,
		Shutdown:                  s.shutdown,
		SetTrace:                  s.setTrace,
		TextDocumentDidOpen:       s.textDocumentDidOpen,
		TextDocumentDidChange:     s.textDocumentDidChange,
		TextDocumentDidClose:      s.textDocumentDidClose,
		TextDocumentDefinition:    s.textDocumentDefinition,
		TextDocumentReferences:    s.textDocumentReferences,
		TextDocumentPrepareRename: s.textDocumentPrepareRename,
		TextDocumentRename:        s.textDocumentRename,
	}
	return s
}

// RunStdio serves requests on stdin/stdout until the client exits.
func (s *Server) RunStdio() error {
	s.log.Infof("%s %s starting on stdio", lsName, lsVersion)
	return server.NewServer(&s.handler, lsName, s.debug).RunStdio()
}

// Wait blocks until a workspace load started by initialize has finished.
func (s *Server) Wait() { s.loading.Wait() }

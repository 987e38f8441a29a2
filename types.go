package morpheus

import (
	"github.com/jward/morpheus/internal/document"
	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/index"
	"github.com/jward/morpheus/internal/resolve"
	"github.com/jward/morpheus/internal/syntax"
)

// Public aliases for the internal types returned by the Engine.

type Tree = syntax.Tree
type Node = syntax.Node
type Point = syntax.Point
type Range = syntax.Range
type ErrorNode = syntax.ErrorNode

type Thread = facts.Thread
type Label = facts.Label
type Variable = facts.Variable
type Call = facts.Call
type Goto = facts.Goto

type Document = document.Document
type Mode = document.Mode

type Symbol = index.Symbol
type Reference = index.Reference
type Stats = index.Stats
type Kind = index.Kind
type Context = index.Context

const (
	Unparsed   = document.Unparsed
	Structural = document.Structural
	Stale      = document.Stale
	Closed     = document.Closed
)

var (
	ErrNotInitialized  = syntax.ErrNotInitialized
	ErrUnknownDocument = document.ErrUnknownDocument
	ErrInvalidName     = resolve.ErrInvalidName
	ErrReservedName    = resolve.ErrReservedName
)

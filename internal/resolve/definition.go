package resolve

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/index"
	"github.com/jward/morpheus/internal/syntax"
)

// strategy resolves one kind of cursor. It returns nothing when the cursor
// is not its kind or the lookup misses.
type strategy func(r *Resolver, c cursor) []protocol.Location

// definitionStrategies run in order; the first non-empty answer wins.
var definitionStrategies = []strategy{
	(*Resolver).gotoLabel,
	(*Resolver).scopedVariable,
	(*Resolver).crossFile,
	(*Resolver).callTarget,
	(*Resolver).threadSite,
}

// Definition returns the definition of the symbol at pos.
func (r *Resolver) Definition(uri string, pos protocol.Position) []protocol.Location {
	c, ok := r.cursorAt(uri, pos)
	if !ok {
		return nil
	}
	for _, s := range definitionStrategies {
		if locs := s(r, c); len(locs) > 0 {
			return locs
		}
	}
	log.Debugf("no definition for %q at %s:%d:%d", c.word, uri, pos.Line, pos.Character)
	return nil
}

// gotoLabel resolves a goto target or label to the label of the same thread.
func (r *Resolver) gotoLabel(c cursor) []protocol.Location {
	if !c.gotoTarget && !c.labelDef {
		return nil
	}
	for _, s := range r.index.FindAllDefinitions(c.word) {
		if s.Kind == index.KindLabel && s.URI == c.uri && strings.EqualFold(s.Container, c.thread) {
			return r.symbolLocations([]index.Symbol{s})
		}
	}
	return nil
}

// scopedVariable resolves local variables inside the enclosing thread only.
// Other scopes resolve in the current file first, then in every other file.
func (r *Resolver) scopedVariable(c cursor) []protocol.Location {
	if c.scope == "" || c.word == "" {
		return nil
	}
	var here, elsewhere []index.Symbol
	for _, s := range r.index.FindAllDefinitions(c.key()) {
		switch {
		case s.URI != c.uri:
			elsewhere = append(elsewhere, s)
		case c.scope != "local" || strings.EqualFold(s.Container, c.thread):
			here = append(here, s)
		}
	}
	if len(here) > 0 {
		return r.symbolLocations(here[:1])
	}
	if c.scope == "local" {
		return nil
	}
	return r.symbolLocations(elsewhere)
}

// crossFile resolves "path::label" to the label in every script matching
// path. A path without a label resolves to the start of the script.
func (r *Resolver) crossFile(c cursor) []protocol.Location {
	if c.path == "" {
		return nil
	}
	var out []protocol.Location
	for _, uri := range r.index.ResolvePath(c.path) {
		if c.label == "" {
			if loc, ok := r.location(uri, syntax.Range{}); ok {
				out = append(out, loc)
			}
			continue
		}
		var threads, labels []index.Symbol
		for _, s := range r.index.FindAllDefinitions(c.label) {
			if s.URI != uri {
				continue
			}
			switch s.Kind {
			case index.KindThread:
				threads = append(threads, s)
			case index.KindLabel:
				labels = append(labels, s)
			}
		}
		if len(threads) == 0 {
			threads = labels
		}
		out = append(out, r.symbolLocations(threads)...)
	}
	return out
}

// callTarget resolves the thread named by a call keyword.
func (r *Resolver) callTarget(c cursor) []protocol.Location {
	if !c.callTarget || c.word == "" {
		return nil
	}
	return r.symbolLocations(r.threads(c))
}

// threadSite resolves any bare identifier naming a thread, including the
// name in the thread's own header.
func (r *Resolver) threadSite(c cursor) []protocol.Location {
	if c.word == "" || c.scope != "" || c.path != "" {
		return nil
	}
	return r.symbolLocations(r.threads(c))
}

// threads returns the threads named c.word: the one in the current file if
// there is one, otherwise all of them.
func (r *Resolver) threads(c cursor) []index.Symbol {
	var here, all []index.Symbol
	for _, s := range r.index.FindAllDefinitions(c.word) {
		if s.Kind != index.KindThread {
			continue
		}
		if s.URI == c.uri {
			if s.NameRange.Contains(c.point) || s.NameRange.End == c.point {
				return []index.Symbol{s}
			}
			here = append(here, s)
		}
		all = append(all, s)
	}
	if len(here) > 0 {
		return here[:1]
	}
	return all
}

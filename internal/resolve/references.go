package resolve

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/syntax"
)

type site struct {
	uri string
	rg  syntax.Range
}

// References returns every occurrence of the identifier at pos across the
// tracked documents, sorted by URI then position. Documents with a current
// tree are searched for identifier nodes; the others by whole word.
func (r *Resolver) References(uri string, pos protocol.Position, includeDeclaration bool) []protocol.Location {
	c, ok := r.cursorAt(uri, pos)
	if !ok || c.word == "" {
		return nil
	}

	skip := make(map[site]bool)
	if !includeDeclaration {
		keys := []string{c.key()}
		if c.scope != "" {
			keys = append(keys, strings.ToLower(c.word))
		}
		for _, key := range keys {
			for _, ref := range r.index.FindReferences(key, true) {
				if ref.IsDefinition || ref.IsDeclaration {
					skip[site{ref.URI, ref.NameRange}] = true
				}
			}
		}
	}

	var out []protocol.Location
	for _, u := range r.tracked() {
		src, ok := r.source(u)
		if !ok {
			continue
		}
		for _, rg := range r.identifiers(src, c.word) {
			if skip[site{u, rg}] {
				continue
			}
			out = append(out, protocol.Location{URI: protocol.DocumentUri(u), Range: src.lines.Range(rg)})
		}
	}
	sortLocations(out)
	return out
}

func (r *Resolver) identifiers(src source, word string) []syntax.Range {
	in := facts.Input{URI: src.uri, Text: src.text, Tree: src.tree}
	if src.tree != nil {
		ranges, err := r.structural.Identifiers(in, word)
		if err == nil {
			return ranges
		}
		log.Warningf("%s: identifier search failed, using text search: %s", src.uri, err)
		in.Tree = nil
	}
	ranges, err := r.fallback.Identifiers(in, word)
	if err != nil {
		log.Errorf("%s: text search failed: %s", src.uri, err)
		return nil
	}
	return ranges
}

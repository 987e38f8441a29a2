package index

import (
	"strings"

	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/syntax"
)

// symbols lists the definition sites in set.
func symbols(uri string, set facts.Set) []Symbol {
	var out []Symbol
	for _, t := range set.Threads {
		out = append(out, Symbol{
			Name:      t.Name,
			Kind:      KindThread,
			URI:       uri,
			Range:     t.Range,
			NameRange: t.NameRange,
			Params:    t.Params,
		})
	}
	for _, l := range set.Labels {
		out = append(out, Symbol{
			Name:      l.Name,
			Kind:      KindLabel,
			Container: l.Thread,
			URI:       uri,
			Range:     l.Range,
			NameRange: l.NameRange,
		})
	}
	for _, v := range set.Variables {
		s := Symbol{
			Name:      v.Name,
			Kind:      KindVariable,
			Scope:     strings.ToLower(v.Scope),
			URI:       uri,
			Range:     v.Range,
			NameRange: v.NameRange,
		}
		if s.Scope == "local" {
			s.Container = v.Thread
		}
		out = append(out, s)
	}
	return out
}

// references lists every occurrence of a symbol name in set, definition
// sites included. Container is always the enclosing thread.
func references(uri string, set facts.Set) []Reference {
	var out []Reference
	for _, t := range set.Threads {
		out = append(out, Reference{
			URI:          uri,
			Name:         t.Name,
			Range:        t.NameRange,
			NameRange:    t.NameRange,
			IsDefinition: true,
			Context:      ContextDefinition,
			Container:    t.Name,
		})
	}
	for _, l := range set.Labels {
		out = append(out, Reference{
			URI:          uri,
			Name:         l.Name,
			Range:        l.NameRange,
			NameRange:    l.NameRange,
			IsDefinition: true,
			Context:      ContextLabel,
			Container:    l.Thread,
		})
	}

	firstWrites := make(map[syntax.Range]facts.Variable, len(set.Variables))
	for _, v := range set.Variables {
		firstWrites[v.NameRange] = v
	}
	for _, u := range set.Uses {
		ref := Reference{
			URI:       uri,
			Name:      u.Name,
			Range:     u.Range,
			NameRange: u.NameRange,
			Context:   ContextRead,
			Scope:     strings.ToLower(u.Scope),
			Container: u.Thread,
		}
		if u.Write {
			ref.Context = ContextAssignment
		}
		if v, ok := firstWrites[u.NameRange]; ok {
			ref.IsDefinition = true
			ref.IsDeclaration = v.Param
		}
		out = append(out, ref)
	}

	for _, c := range set.Calls {
		switch {
		case c.CrossFile() && c.Label != "":
			out = append(out, Reference{
				URI:       uri,
				Name:      c.Label,
				Range:     c.TargetRange,
				NameRange: c.LabelRange,
				Context:   ContextCrossFileCall,
				Container: c.Thread,
			})
		case !c.CrossFile():
			out = append(out, Reference{
				URI:       uri,
				Name:      c.Target,
				Range:     c.TargetRange,
				NameRange: c.TargetRange,
				Context:   ContextCall,
				Container: c.Thread,
			})
		}
	}
	for _, g := range set.Gotos {
		out = append(out, Reference{
			URI:       uri,
			Name:      g.Label,
			Range:     g.LabelRange,
			NameRange: g.LabelRange,
			Context:   ContextGoto,
			Container: g.Thread,
		})
	}
	return out
}

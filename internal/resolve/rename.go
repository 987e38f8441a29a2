package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/index"
)

var (
	bareName   = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	scopedName = regexp.MustCompile(`^(local|level|game|group)\.([A-Za-z_]\w*)$`)
)

// PrepareRename returns the range of the renameable identifier at pos, or
// nil when there is nothing to rename there.
func (r *Resolver) PrepareRename(uri string, pos protocol.Position) (*protocol.Range, error) {
	c, ok := r.cursorAt(uri, pos)
	if !ok || c.word == "" {
		return nil, nil
	}
	if r.IsReserved(c.word) {
		return nil, fmt.Errorf("%w: %q", ErrReservedName, c.word)
	}
	if len(r.renameTargets(c)) == 0 {
		return nil, nil
	}
	src, _ := r.source(uri)
	rg := src.lines.Range(c.wordRange)
	return &rg, nil
}

// Rename renames the symbol at pos to newName in every tracked document.
//
// A bare new name replaces only the name of each occurrence, so
// "local.counter" becomes "local.counter2". A scope-qualified new name is
// allowed for variables and replaces scope and name together. Thread-local
// variables are renamed inside their thread only.
func (r *Resolver) Rename(uri string, pos protocol.Position, newName string) (*protocol.WorkspaceEdit, error) {
	c, ok := r.cursorAt(uri, pos)
	if !ok || c.word == "" {
		return nil, nil
	}
	if r.IsReserved(c.word) {
		return nil, fmt.Errorf("%w: %q", ErrReservedName, c.word)
	}
	scope, base, err := r.validateName(newName)
	if err != nil {
		return nil, err
	}
	if scope != "" && c.scope == "" {
		return nil, fmt.Errorf("%w: %q: only variables take a scope", ErrInvalidName, newName)
	}

	refs := r.renameTargets(c)
	if len(refs) == 0 {
		return nil, nil
	}
	changes := make(map[protocol.DocumentUri][]protocol.TextEdit)
	for _, ref := range refs {
		src, ok := r.source(ref.URI)
		if !ok {
			continue
		}
		rg, text := ref.NameRange, base
		if scope != "" && (ref.Context == index.ContextAssignment || ref.Context == index.ContextRead) {
			rg, text = ref.Range, newName
		}
		u := protocol.DocumentUri(ref.URI)
		changes[u] = append(changes[u], protocol.TextEdit{Range: src.lines.Range(rg), NewText: text})
	}
	for _, edits := range changes {
		sort.Slice(edits, func(i, j int) bool {
			a, b := edits[i].Range.Start, edits[j].Range.Start
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			return a.Character < b.Character
		})
	}
	log.Infof("rename %q to %q: %d edits in %d files", c.key(), newName, len(refs), len(changes))
	return &protocol.WorkspaceEdit{Changes: changes}, nil
}

// validateName splits a new name into its optional scope and base name.
func (r *Resolver) validateName(name string) (scope, base string, err error) {
	switch m := scopedName.FindStringSubmatch(name); {
	case m != nil:
		scope, base = m[1], m[2]
	case bareName.MatchString(name):
		base = name
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if r.IsReserved(base) {
		return "", "", fmt.Errorf("%w: %q", ErrReservedName, base)
	}
	return scope, base, nil
}

// renameTargets returns the references a rename at c rewrites.
func (r *Resolver) renameTargets(c cursor) []index.Reference {
	var out []index.Reference
	for _, ref := range r.index.FindReferences(c.key(), true) {
		jump := ref.Context == index.ContextLabel || ref.Context == index.ContextGoto
		switch {
		case c.scope == "local":
			if ref.URI != c.uri || !strings.EqualFold(ref.Container, c.thread) {
				continue
			}
		case c.scope != "":
		case c.gotoTarget || c.labelDef:
			if !jump || ref.URI != c.uri || !strings.EqualFold(ref.Container, c.thread) {
				continue
			}
		case jump:
			continue
		}
		out = append(out, ref)
	}
	return out
}

package morpheus

import (
	"fmt"
	"strings"

	"github.com/jward/morpheus/internal/store"
)

// Export writes the index to a snapshot database, one transaction per
// document, and drops stored documents the index no longer has. It returns
// the number of documents written; unchanged documents are skipped.
func (e *Engine) Export(s *store.Store) (int, error) {
	if err := s.Migrate(); err != nil {
		return 0, fmt.Errorf("morpheus: export: %w", err)
	}

	e.mu.Lock()
	uris := e.index.Documents()
	batches := make([]*store.Batch, 0, len(uris))
	for _, uri := range uris {
		doc, ok := e.index.Document(uri)
		if !ok {
			continue
		}
		b := store.NewBatch(store.File{
			URI:       uri,
			Version:   doc.Version,
			Hash:      store.ContentHash(doc.Text),
			LineCount: strings.Count(doc.Text, "\n") + 1,
		})
		for _, sym := range doc.Symbols {
			b.AddSymbol(store.Symbol{
				Key:       sym.Key(),
				Name:      sym.Name,
				Kind:      string(sym.Kind),
				Scope:     sym.Scope,
				Container: sym.Container,
				Params:    sym.Params,
				StartLine: int(sym.Range.Start.Row),
				StartCol:  int(sym.Range.Start.Column),
				EndLine:   int(sym.Range.End.Row),
				EndCol:    int(sym.Range.End.Column),
				NameLine:  int(sym.NameRange.Start.Row),
				NameCol:   int(sym.NameRange.Start.Column),
			})
		}
		for key, refs := range doc.References {
			for _, r := range refs {
				b.AddReference(store.Reference{
					Key:           key,
					Name:          r.Name,
					Context:       string(r.Context),
					Scope:         r.Scope,
					Container:     r.Container,
					IsDefinition:  r.IsDefinition,
					IsDeclaration: r.IsDeclaration,
					StartLine:     int(r.Range.Start.Row),
					StartCol:      int(r.Range.Start.Column),
					EndLine:       int(r.Range.End.Row),
					EndCol:        int(r.Range.End.Column),
				})
			}
		}
		batches = append(batches, b)
	}
	e.mu.Unlock()

	var (
		written int
		errs    []error
	)
	for _, b := range batches {
		ok, err := s.CommitBatch(b)
		if err != nil {
			errs = append(errs, fmt.Errorf("export %s: %w", b.File.URI, err))
			continue
		}
		if ok {
			written++
		}
	}
	if _, err := s.Prune(uris); err != nil {
		errs = append(errs, err)
	}
	e.log.Infof("exported %d of %d document(s)", written, len(batches))

	if len(errs) > 0 {
		return written, fmt.Errorf("export had %d error(s): %w", len(errs), errs[0])
	}
	return written, nil
}

package store

import "sync"

// Batch buffers one file's snapshot rows in memory until CommitBatch writes
// them in a single transaction. Appends are safe for concurrent use.
type Batch struct {
	mu sync.Mutex

	File       File
	Symbols    []Symbol
	References []Reference
}

// NewBatch starts a batch for a file.
func NewBatch(f File) *Batch {
	return &Batch{File: f}
}

func (b *Batch) AddSymbol(sym Symbol) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sym.SignatureHash == "" {
		sym.SignatureHash = ComputeSignatureHash(sym.Key, sym.Kind, sym.Container, sym.Params)
	}
	b.Symbols = append(b.Symbols, sym)
}

func (b *Batch) AddReference(ref Reference) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.References = append(b.References, ref)
}

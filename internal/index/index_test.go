package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/morpheus/internal/facts"
	"github.com/jward/morpheus/internal/syntax"
)

const (
	utilURI = "file:///main/global/util.scr"
	mapURI  = "file:///main/maps/dm/mohdm1.scr"
)

const utilScript = `setup:
	level.score = 0
end
`

const mapScript = `main:
	thread helper
	println level.score
	exec global/util.scr::setup
end

helper local.n:
	local.total = local.n + 1
	goto done
done:
end
`

type recordingParser struct {
	*syntax.Service
	trees []*syntax.Tree
}

func (p *recordingParser) Parse(text []byte) (*syntax.Tree, error) {
	tree, err := p.Service.Parse(text)
	if err == nil {
		p.trees = append(p.trees, tree)
	}
	return tree, err
}

type lender struct {
	uri     string
	version int32
	tree    *syntax.Tree
}

func (l lender) TreeFor(uri string, version int32) (*syntax.Tree, bool) {
	if uri != l.uri || version != l.version {
		return nil, false
	}
	return l.tree, true
}

func newService(t *testing.T) (*syntax.Service, *facts.Structural) {
	t.Helper()
	st := facts.NewStructural()
	svc := syntax.NewService(syntax.WithInitHook(st.Load))
	require.NoError(t, svc.Init(context.Background()))
	return svc, st
}

func newIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	svc, st := newService(t)
	return New(svc, st, facts.NewTextual(), opts...)
}

func rng(sr, sc, er, ec uint32) syntax.Range {
	return syntax.Range{Start: syntax.Point{Row: sr, Column: sc}, End: syntax.Point{Row: er, Column: ec}}
}

type state struct {
	defs map[string][]Symbol
	refs map[string][]Reference
}

func snapshot(x *Index) state {
	s := state{defs: map[string][]Symbol{}, refs: map[string][]Reference{}}
	for k, v := range x.definitions {
		s.defs[k] = append([]Symbol(nil), v...)
	}
	for k, v := range x.references {
		s.refs[k] = append([]Reference(nil), v...)
	}
	return s
}

func assertNoTrace(t *testing.T, x *Index, uri string) {
	t.Helper()
	for key, defs := range x.definitions {
		assert.NotEmpty(t, defs, "empty definitions under %q", key)
		for _, d := range defs {
			assert.NotEqual(t, uri, d.URI, "definition %q", key)
		}
	}
	for key, refs := range x.references {
		assert.NotEmpty(t, refs, "empty references under %q", key)
		for _, r := range refs {
			assert.NotEqual(t, uri, r.URI, "reference %q", key)
		}
	}
	_, ok := x.Document(uri)
	assert.False(t, ok)
	assert.NotContains(t, x.Documents(), uri)
}

// =============================================================================
// Indexing
// =============================================================================

func TestIndexDocument_Idempotent(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)
	once := snapshot(x)

	x.IndexDocument(mapURI, 1, mapScript)
	x.IndexDocument(mapURI, 1, "ignored:\nend\n")
	assert.Equal(t, once, snapshot(x))
}

func TestIndexDocument_NewVersionKeepsOrder(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)
	before := snapshot(x)

	x.IndexDocument(utilURI, 2, utilScript)
	assert.Equal(t, before, snapshot(x))
	assert.Equal(t, []string{utilURI, mapURI}, x.Documents())

	doc, ok := x.Document(utilURI)
	require.True(t, ok)
	assert.Equal(t, int32(2), doc.Version)
}

func TestIndexDocument_NewVersionReplaces(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(utilURI, 2, "teardown:\nend\n")

	_, ok := x.FindDefinition("setup")
	assert.False(t, ok)
	assert.Empty(t, x.FindReferences("level.score", true))
	_, ok = x.FindDefinition("teardown")
	assert.True(t, ok)
}

func TestIndexDocument_Symbols(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(mapURI, 1, mapScript)

	helper, ok := x.FindDefinition("HELPER")
	require.True(t, ok)
	assert.Equal(t, KindThread, helper.Kind)
	assert.Equal(t, []string{"local.n"}, helper.Params)
	assert.Equal(t, rng(6, 0, 6, 6), helper.NameRange)

	done, ok := x.FindDefinition("done")
	require.True(t, ok)
	assert.Equal(t, KindLabel, done.Kind)
	assert.Equal(t, "helper", done.Container)

	total, ok := x.FindDefinition("local.total")
	require.True(t, ok)
	assert.Equal(t, KindVariable, total.Kind)
	assert.Equal(t, "local", total.Scope)
	assert.Equal(t, "helper", total.Container)
	assert.Equal(t, rng(7, 1, 7, 12), total.Range)
	assert.Equal(t, rng(7, 7, 7, 12), total.NameRange)

	assert.Equal(t, []string{"done", "helper", "local.n", "local.total", "main"}, x.Names())
}

func TestIndexDocument_References(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)

	setup := x.FindReferences("setup", true)
	require.Len(t, setup, 2)
	assert.Equal(t, ContextDefinition, setup[0].Context)
	assert.Equal(t, utilURI, setup[0].URI)
	assert.Equal(t, ContextCrossFileCall, setup[1].Context)
	assert.Equal(t, rng(3, 6, 3, 28), setup[1].Range)
	assert.Equal(t, rng(3, 23, 3, 28), setup[1].NameRange)

	calls := x.FindReferences("helper", false)
	require.Len(t, calls, 1)
	assert.Equal(t, ContextCall, calls[0].Context)
	assert.Equal(t, rng(1, 8, 1, 14), calls[0].NameRange)

	gotos := x.FindReferences("done", false)
	require.Len(t, gotos, 1)
	assert.Equal(t, ContextGoto, gotos[0].Context)
	assert.Equal(t, "helper", gotos[0].Container)

	n := x.FindReferences("local.n", true)
	require.Len(t, n, 2)
	assert.Equal(t, ContextAssignment, n[0].Context)
	assert.True(t, n[0].IsDeclaration)
	assert.Equal(t, ContextRead, n[1].Context)
	assert.Equal(t, "local", n[1].Scope)
	assert.Len(t, x.FindReferences("local.n", false), 1)
}

func TestSymbolStats(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)

	assert.Equal(t, Stats{
		Name:         "level.score",
		Definitions:  1,
		References:   1,
		Declarations: 1,
		Files:        []string{utilURI, mapURI},
	}, x.SymbolStats("Level.Score"))
	assert.Equal(t, Stats{Name: "nothing"}, x.SymbolStats("nothing"))
}

// =============================================================================
// Resolution across files
// =============================================================================

func TestFindDefinition_CrossFileGlobal(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)

	read := x.FindReferences("level.score", false)
	require.Len(t, read, 1)
	assert.Equal(t, mapURI, read[0].URI)
	assert.Equal(t, uint32(2), read[0].Range.Start.Row)

	def, ok := x.FindDefinition(read[0].Key())
	require.True(t, ok)
	assert.Equal(t, utilURI, def.URI)
	assert.Equal(t, uint32(1), def.Range.Start.Row)
}

func TestFindDefinition_FirstIndexed(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument("file:///a.scr", 1, "setup:\nend\n")
	x.IndexDocument("file:///b.scr", 1, "\n\nsetup:\nend\n")

	def, ok := x.FindDefinition("setup")
	require.True(t, ok)
	assert.Equal(t, "file:///a.scr", def.URI)
	assert.Len(t, x.FindAllDefinitions("setup"), 2)

	x.IndexDocument("file:///a.scr", 2, "\nsetup:\nend\n")
	def, _ = x.FindDefinition("setup")
	assert.Equal(t, "file:///a.scr", def.URI)
	assert.Equal(t, uint32(1), def.Range.Start.Row)
}

// =============================================================================
// Removal
// =============================================================================

func TestRemoveDocument_Clean(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)

	require.True(t, x.RemoveDocument(mapURI))
	assertNoTrace(t, x, mapURI)
	assert.False(t, x.RemoveDocument(mapURI))

	_, ok := x.FindDefinition("helper")
	assert.False(t, ok)
	assert.Len(t, x.FindReferences("setup", true), 1)

	require.True(t, x.RemoveDocument(utilURI))
	assert.Empty(t, x.definitions)
	assert.Empty(t, x.references)
	assert.Empty(t, x.Documents())
}

func TestRemoveDocument_AnySequence(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	sources := map[string]string{
		"file:///a.scr": utilScript,
		"file:///b.scr": mapScript,
		"file:///c.scr": "setup local.n:\n\tlevel.score = local.n\n\tgoto setup\nend\n",
	}
	ops := []struct {
		uri    string
		remove bool
	}{
		{"file:///a.scr", false}, {"file:///b.scr", false}, {"file:///a.scr", true},
		{"file:///c.scr", false}, {"file:///a.scr", false}, {"file:///b.scr", true},
		{"file:///c.scr", false}, {"file:///c.scr", true}, {"file:///b.scr", false},
		{"file:///a.scr", true}, {"file:///b.scr", true},
	}
	for i, op := range ops {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			if op.remove {
				x.RemoveDocument(op.uri)
				assertNoTrace(t, x, op.uri)
				return
			}
			x.IndexDocument(op.uri, int32(i), sources[op.uri])
		})
	}
	assert.Empty(t, x.definitions)
	assert.Empty(t, x.references)
}

// =============================================================================
// Extraction sources
// =============================================================================

func TestIndexDocument_BorrowsLentTree(t *testing.T) {
	t.Parallel()
	svc, st := newService(t)
	tree, err := svc.Parse([]byte(mapScript))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Release() })

	p := &recordingParser{Service: svc}
	x := New(p, st, facts.NewTextual(), WithTreeSource(lender{uri: mapURI, version: 3, tree: tree}))
	x.IndexDocument(mapURI, 3, mapScript)

	assert.False(t, tree.Released())
	assert.Empty(t, p.trees, "no temporary parse")
	_, ok := x.FindDefinition("helper")
	assert.True(t, ok)

	// Version mismatch parses a temporary tree and releases it.
	x.IndexDocument(mapURI, 4, mapScript)
	require.Len(t, p.trees, 1)
	assert.True(t, p.trees[0].Released())
}

func TestIndexDocument_TextualWithoutParser(t *testing.T) {
	t.Parallel()
	x := New(syntax.NewService(), facts.NewStructural(), facts.NewTextual())
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)

	def, ok := x.FindDefinition("level.score")
	require.True(t, ok)
	assert.Equal(t, utilURI, def.URI)
	assert.Len(t, x.FindReferences("done", true), 2)
}

// =============================================================================
// Paths and suggestions
// =============================================================================

func TestResolvePath(t *testing.T) {
	t.Parallel()
	x := newIndex(t, WithPathCacheSize(4))
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)

	assert.Equal(t, []string{utilURI}, x.ResolvePath("global/util.scr"))
	assert.Equal(t, []string{utilURI}, x.ResolvePath("Global\\Util.scr"))
	assert.Equal(t, []string{mapURI}, x.ResolvePath("./maps/dm/mohdm1.scr"))
	assert.Empty(t, x.ResolvePath("bal/util.scr"))
	assert.Empty(t, x.ResolvePath(""))

	// Cached misses are dropped when the index changes.
	assert.Empty(t, x.ResolvePath("global/extra.scr"))
	x.IndexDocument("file:///main/global/extra.scr", 1, "extra:\nend\n")
	assert.Equal(t, []string{"file:///main/global/extra.scr"}, x.ResolvePath("global/extra.scr"))

	x.RemoveDocument(utilURI)
	assert.Empty(t, x.ResolvePath("global/util.scr"))
}

func TestSuggest(t *testing.T) {
	t.Parallel()
	x := newIndex(t)
	x.IndexDocument(utilURI, 1, utilScript)
	x.IndexDocument(mapURI, 1, mapScript)

	assert.Equal(t, []string{"helper"}, x.Suggest("helpr", 5))
	assert.Equal(t, []string{"level.score"}, x.Suggest("scor", 5))
	assert.Equal(t, []string{"local.total"}, x.Suggest("local.totl", 0))
	assert.Empty(t, x.Suggest("helper", 5))
	assert.Empty(t, x.Suggest("", 5))
	assert.Equal(t, []string{"local.total"}, x.Suggest("totl", 1))
}

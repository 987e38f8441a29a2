package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/morpheus/internal/syntax"
)

func TestTextual_ThreadBoundaries(t *testing.T) {
	t.Parallel()
	set := textualSet(t, script)
	require.Len(t, set.Threads, 2)
	assert.Equal(t, rng(0, 0, 13, 3), set.Threads[0].Range)
	assert.Equal(t, []string{"local.count"}, set.Threads[0].Params)
	assert.Equal(t, "helper", set.Threads[1].Name)
	assert.Equal(t, rng(15, 0, 19, 3), set.Threads[1].Range)
}

func TestTextual_EndInsideBracesIsNotThreadEnd(t *testing.T) {
	t.Parallel()
	set := textualSet(t, "main:\n\tif (1) {\n\t\tend\n\t}\nlater:\n\twait 1\nend\n")
	require.Len(t, set.Threads, 1)
	require.Len(t, set.Labels, 1)
	assert.Equal(t, "later", set.Labels[0].Name)
	assert.Equal(t, "main", set.Labels[0].Thread)
}

func TestTextual_HeaderWithParamsStartsThread(t *testing.T) {
	t.Parallel()
	set := textualSet(t, "first:\n\twait 1\nsecond local.a:\n\tend\n")
	require.Len(t, set.Threads, 2)
	assert.Equal(t, rng(0, 0, 2, 0), set.Threads[0].Range)
	assert.Equal(t, "second", set.Threads[1].Name)
	assert.Empty(t, set.Labels)
}

func TestTextual_HeaderWithoutParamsHasNilParams(t *testing.T) {
	t.Parallel()
	src := "main:\n\twait 1\nend\n"
	set := textualSet(t, src)
	require.Len(t, set.Threads, 1)
	assert.Nil(t, set.Threads[0].Params)
	assert.Equal(t, structuralSet(t, src).Threads[0].Params, set.Threads[0].Params)
}

func TestTextual_UnterminatedThread(t *testing.T) {
	t.Parallel()
	set := textualSet(t, "main:\n\tlocal.x = 1")
	require.Len(t, set.Threads, 1)
	assert.Equal(t, rng(0, 0, 1, 12), set.Threads[0].Range)
	require.Len(t, set.Variables, 1)
	assert.Equal(t, "main", set.Variables[0].Thread)
}

func TestTextual_ComparisonIsNotWrite(t *testing.T) {
	t.Parallel()
	set := textualSet(t, "main:\n\tif (level.x == 1) { level.y = 2 }\nend\n")
	require.Len(t, set.Variables, 1)
	assert.Equal(t, "level.y", set.Variables[0].Key())
}

func TestTextual_IgnoresCodeOutsideThreads(t *testing.T) {
	t.Parallel()
	set := textualSet(t, "level.x = 1\ngoto nowhere\n")
	assert.Empty(t, set.Threads)
	assert.Empty(t, set.Variables)
	assert.Empty(t, set.Gotos)
}

func TestTextual_IdentifiersSeeComments(t *testing.T) {
	t.Parallel()
	text := []byte("// helper\n" + script)
	got, err := NewTextual().Identifiers(Input{URI: uri, Text: text}, "helper")
	require.NoError(t, err)
	assert.Equal(t, []syntax.Range{rng(0, 3, 0, 9), rng(6, 8, 6, 14), rng(7, 17, 7, 23), rng(16, 0, 16, 6)}, got)

	got, err = NewTextual().Identifiers(Input{URI: uri, Text: text}, "help")
	require.NoError(t, err)
	assert.Empty(t, got, "whole words only")
}

// =============================================================================
// Parity
// =============================================================================

// The two extractors agree on everything a canonical source (no comments or
// strings holding code) lets a line matcher see.
func TestParity(t *testing.T) {
	t.Parallel()
	sources := map[string]string{
		"script":    script,
		"shadowing": "threadA:\n local.x = 1\nend\nthreadB:\n local.x = 2\n println local.x\nend\n",
		"labels": "main:\n\tgoto a\na:\n\tgoto b\nb:\n\tlocal.n++\nend\n\n" +
			"other local.p local.q:\n\tlocal.p[0] = local.q\n\twaitexec maps/x.scr::start local.p\nend\n",
		"scopes": "main:\n\tLOCAL.a = 1\n\tgroup.g = level.l\n\tgame.v -= 2\n\tlevel.l = 3\nend\n",
	}
	st := NewStructural()
	svc := syntax.NewService(syntax.WithInitHook(st.Load))
	require.NoError(t, svc.Init(context.Background()))

	for name, text := range sources {
		t.Run(name, func(t *testing.T) {
			tree, err := svc.Parse([]byte(text))
			require.NoError(t, err)
			defer tree.Release()

			want, err := Extract(st, Input{URI: uri, Text: []byte(text), Tree: tree})
			require.NoError(t, err)
			got := textualSet(t, text)

			assert.Equal(t, threadShapes(want.Threads), threadShapes(got.Threads))
			assert.Equal(t, want.Labels, got.Labels)
			assert.Equal(t, want.Variables, got.Variables)
			assert.Equal(t, want.Uses, got.Uses)
			assert.Equal(t, callShapes(want.Calls), callShapes(got.Calls))
			assert.Equal(t, want.Gotos, got.Gotos)
		})
	}
}

// threadShapes drops the body range, which a line matcher cannot place.
func threadShapes(ts []Thread) []Thread {
	out := make([]Thread, len(ts))
	for i, t := range ts {
		t.BodyRange = syntax.Range{}
		out[i] = t
	}
	return out
}

// callShapes drops the statement range, which includes arguments.
func callShapes(cs []Call) []Call {
	out := make([]Call, len(cs))
	for i, c := range cs {
		c.Range = syntax.Range{}
		out[i] = c
	}
	return out
}

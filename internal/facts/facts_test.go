package facts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/morpheus/internal/syntax"
)

const uri = "file:///maps/dm/test.scr"

// Rows: main 0, retry label 10, end 13, helper 15, end 19.
const script = `main local.count:
	local.x = 1
	level.score = 0
	Level.bonus = 2
	local.x = 5
	thread helper local.x
	self waitthread helper
	exec global/util.scr
	thread global/util.scr::setup 1
	goto retry
retry:
	if (local.x < 3) { local.x++ }
	level.arr[1] = local.x
end

helper local.a:
	local.x = 2
	println local.x
	game.total += local.a
end
`

func rng(r1, c1, r2, c2 uint32) syntax.Range {
	return syntax.Range{Start: syntax.Point{Row: r1, Column: c1}, End: syntax.Point{Row: r2, Column: c2}}
}

func newStructural(t *testing.T) (*syntax.Service, *Structural) {
	t.Helper()
	st := NewStructural()
	svc := syntax.NewService(syntax.WithInitHook(st.Load))
	require.NoError(t, svc.Init(context.Background()))
	require.True(t, st.Loaded())
	return svc, st
}

func structuralInput(t *testing.T, text string) (Input, *Structural) {
	t.Helper()
	svc, st := newStructural(t)
	tree, err := svc.Parse([]byte(text))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Release() })
	return Input{URI: uri, Text: []byte(text), Tree: tree}, st
}

func structuralSet(t *testing.T, text string) Set {
	t.Helper()
	in, st := structuralInput(t, text)
	set, err := Extract(st, in)
	require.NoError(t, err)
	return set
}

func textualSet(t *testing.T, text string) Set {
	t.Helper()
	set, err := Extract(NewTextual(), Input{URI: uri, Text: []byte(text)})
	require.NoError(t, err)
	return set
}

// =============================================================================
// Structural
// =============================================================================

func TestStructural_Threads(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, script)
	require.Len(t, set.Threads, 2)

	main := set.Threads[0]
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, []string{"local.count"}, main.Params)
	assert.Equal(t, rng(0, 0, 0, 4), main.NameRange)
	assert.Equal(t, rng(0, 0, 13, 3), main.Range)
	assert.Equal(t, uri, main.URI)

	helper := set.Threads[1]
	assert.Equal(t, "helper", helper.Name)
	assert.Equal(t, []string{"local.a"}, helper.Params)
	assert.Equal(t, rng(15, 0, 15, 6), helper.NameRange)
}

func TestStructural_Labels(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, script)
	require.Len(t, set.Labels, 1)
	assert.Equal(t, Label{Name: "retry", Thread: "main", URI: uri, Range: rng(10, 0, 10, 6), NameRange: rng(10, 0, 10, 5)}, set.Labels[0])
}

func TestStructural_VariablesFirstWrite(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, script)

	type row struct {
		key, thread string
		line        uint32
		param       bool
	}
	var got []row
	for _, v := range set.Variables {
		got = append(got, row{v.Key(), v.Thread, v.Range.Start.Row, v.Param})
	}
	assert.Equal(t, []row{
		{"local.count", "main", 0, true},
		{"local.x", "main", 1, false},
		{"level.score", "main", 2, false},
		{"level.bonus", "main", 3, false},
		{"level.arr", "main", 12, false},
		{"local.a", "helper", 15, true},
		{"local.x", "helper", 16, false},
		{"game.total", "helper", 18, false},
	}, got)
}

func TestStructural_MemberAccessNormalised(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, script)
	var bonus *Variable
	for i := range set.Variables {
		if set.Variables[i].Name == "bonus" {
			bonus = &set.Variables[i]
		}
	}
	require.NotNil(t, bonus)
	assert.Equal(t, "level", bonus.Scope)
	assert.Equal(t, rng(3, 1, 3, 12), bonus.Range)
	assert.Equal(t, rng(3, 7, 3, 12), bonus.NameRange)
}

func TestStructural_ThreadLocalShadowing(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, "threadA:\n local.x = 1\nend\nthreadB:\n local.x = 2\n println local.x\nend\n")
	require.Len(t, set.Variables, 2)
	assert.Equal(t, "threadA", set.Variables[0].Thread)
	assert.Equal(t, uint32(1), set.Variables[0].Range.Start.Row)
	assert.Equal(t, "threadB", set.Variables[1].Thread)
	assert.Equal(t, uint32(4), set.Variables[1].Range.Start.Row)
}

func TestStructural_Uses(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, script)

	var writes, reads int
	for _, u := range set.Uses {
		if u.Write {
			writes++
		} else {
			reads++
		}
	}
	// writes: count x score bonus x x++ arr a x total
	assert.Equal(t, 10, writes)
	// reads: x (call arg) x (if) x (arr rhs) x (println) a
	assert.Equal(t, 5, reads)
}

func TestStructural_Calls(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, script)
	require.Len(t, set.Calls, 4)

	assert.Equal(t, "thread", set.Calls[0].Keyword)
	assert.Equal(t, "helper", set.Calls[0].Target)
	assert.False(t, set.Calls[0].CrossFile())
	assert.Equal(t, rng(5, 8, 5, 14), set.Calls[0].TargetRange)

	assert.Equal(t, "waitthread", set.Calls[1].Keyword)
	assert.Equal(t, "helper", set.Calls[1].Target)

	assert.Equal(t, "exec", set.Calls[2].Keyword)
	assert.Equal(t, "global/util.scr", set.Calls[2].Path)
	assert.Empty(t, set.Calls[2].Label)

	c := set.Calls[3]
	assert.Equal(t, "global/util.scr::setup", c.Target)
	assert.Equal(t, "global/util.scr", c.Path)
	assert.Equal(t, "setup", c.Label)
	assert.Equal(t, rng(8, 8, 8, 30), c.TargetRange)
	assert.Equal(t, rng(8, 25, 8, 30), c.LabelRange)
	assert.Equal(t, "main", c.Thread)
}

func TestStructural_Gotos(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, script)
	require.Len(t, set.Gotos, 1)
	assert.Equal(t, Goto{Label: "retry", Thread: "main", URI: uri, Range: rng(9, 1, 9, 11), LabelRange: rng(9, 6, 9, 11)}, set.Gotos[0])
}

func TestStructural_Identifiers(t *testing.T) {
	t.Parallel()
	in, st := structuralInput(t, "// helper\n"+script)
	got, err := st.Identifiers(in, "HELPER")
	require.NoError(t, err)
	assert.Equal(t, []syntax.Range{rng(6, 8, 6, 14), rng(7, 17, 7, 23), rng(16, 0, 16, 6)}, got)
}

func TestStructural_ToleratesErrors(t *testing.T) {
	t.Parallel()
	set := structuralSet(t, "main:\n\tlocal.x = 1\n\tgoto\n\tthread\n")
	require.Len(t, set.Threads, 1)
	assert.Len(t, set.Variables, 1)
	assert.Empty(t, set.Gotos, "goto without a target")
	assert.Empty(t, set.Calls, "call without a target")
}

func TestStructural_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewStructural().Threads(Input{URI: uri})
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, st := newStructural(t)
	_, err = st.Threads(Input{URI: uri, Text: []byte(script)})
	assert.ErrorIs(t, err, ErrNoTree)
}

func TestStructural_ReleasedTree(t *testing.T) {
	t.Parallel()
	svc, st := newStructural(t)
	tree, err := svc.Parse([]byte(script))
	require.NoError(t, err)
	require.NoError(t, tree.Release())

	_, err = st.Labels(Input{URI: uri, Tree: tree})
	assert.ErrorIs(t, err, syntax.ErrTreeReleased)
}

// =============================================================================
// Containing thread
// =============================================================================

func TestFindContainingThread(t *testing.T) {
	t.Parallel()
	svc, _ := newStructural(t)
	tree, err := svc.Parse([]byte(script))
	require.NoError(t, err)
	defer tree.Release()

	tests := []struct {
		row, col uint32
		want     string
	}{
		{16, 2, "helper"},
		{10, 2, "main"},
		{0, 7, "main"},
		{14, 0, ""},
	}
	for _, tt := range tests {
		got := FindContainingThread(tree, tt.row, tt.col)
		assert.Equal(t, tt.want, ThreadName(got, tree.Source()), "row %d col %d", tt.row, tt.col)
	}
}

// =============================================================================
// Extract
// =============================================================================

type panicky struct{ *Textual }

func (panicky) Calls(Input) ([]Call, error) { panic("kaboom") }

type failing struct{ *Textual }

func (failing) Gotos(Input) ([]Goto, error) { return nil, errors.New("nope") }

func TestExtract_RecoversPanic(t *testing.T) {
	t.Parallel()
	_, err := Extract(panicky{NewTextual()}, Input{URI: uri, Text: []byte(script)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Contains(t, err.Error(), uri)
}

func TestExtract_ReturnsError(t *testing.T) {
	t.Parallel()
	set, err := Extract(failing{NewTextual()}, Input{URI: uri, Text: []byte(script)})
	require.EqualError(t, err, "nope")
	assert.Empty(t, set.Threads)
}

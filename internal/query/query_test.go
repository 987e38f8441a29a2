package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/morpheus/internal/syntax"
)

const src = `main local.a:
	local.x = 1
	Level.y = 2
	thread helper local.x
	self waitthread other
	exec global/util.scr::setup
retry:
	goto retry
end
`

func parse(t *testing.T, text string) *syntax.Tree {
	t.Helper()
	s := syntax.NewService()
	require.NoError(t, s.Init(context.Background()))
	tree, err := s.Parse([]byte(text))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Release() })
	return tree
}

func run(t *testing.T, pattern, text string) ([]Match, []byte) {
	t.Helper()
	q, err := New(pattern, syntax.Morpheus())
	require.NoError(t, err)
	tree := parse(t, text)
	return q.Matches(tree.RootNode(), tree.Source()), tree.Source()
}

func captured(matches []Match, name string, src []byte) []string {
	var out []string
	for _, m := range matches {
		if n := m.Node(name); n != nil {
			out = append(out, n.Content(src))
		}
	}
	return out
}

// =============================================================================
// Compilation
// =============================================================================

func TestNew_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		pattern string
		errText string
	}{
		{"unknown node type", "(function_declaration) @f", "unknown node type"},
		{"unknown field", "(thread_definition receiver_type: (identifier))", "unknown field"},
		{"unknown token", `(call_statement "callthread")`, "unknown token"},
		{"unterminated", "(thread_definition name: (identifier)", "unterminated"},
		{"bad predicate", `((identifier) @id (#frob? @id "x"))`, "unknown predicate"},
		{"bad regex", `((identifier) @id (#match? @id "("))`, "#match?"},
		{"empty", "; nothing here\n", "no patterns"},
		{"empty alternation", "[] @x", "empty alternation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.pattern, syntax.Morpheus())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestNew_CaptureNames(t *testing.T) {
	t.Parallel()
	q, err := New(`
; threads
(thread_definition name: (identifier) @thread.name) @thread
(label_definition name: (identifier) @label.name)
`, syntax.Morpheus())
	require.NoError(t, err)
	assert.Equal(t, 2, q.PatternCount())
	assert.Equal(t, []string{"thread.name", "thread", "label.name"}, q.CaptureNames())
}

// =============================================================================
// Matching
// =============================================================================

func TestMatches_FieldCaptures(t *testing.T) {
	t.Parallel()
	matches, text := run(t, "(thread_definition name: (identifier) @name) @thread", src)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"main"}, captured(matches, "name", text))
	assert.Equal(t, syntax.TypeThreadDefinition, matches[0].Node("thread").Type())
}

func TestMatches_DocumentOrder(t *testing.T) {
	t.Parallel()
	matches, text := run(t, "(scoped_variable name: (identifier) @name)", src)
	assert.Equal(t, []string{"a", "x", "x"}, captured(matches, "name", text))
}

func TestMatches_Alternation(t *testing.T) {
	t.Parallel()
	matches, text := run(t, `(call_statement ["thread" "waitthread"] @kw target: (identifier) @target)`, src)
	assert.Equal(t, []string{"thread", "waitthread"}, captured(matches, "kw", text))
	assert.Equal(t, []string{"helper", "other"}, captured(matches, "target", text))
}

func TestMatches_NodeAlternation(t *testing.T) {
	t.Parallel()
	matches, _ := run(t, `(call_statement target: [(script_path) (path_label)] @target)`, src)
	require.Len(t, matches, 1)
	assert.Equal(t, syntax.TypePathLabel, matches[0].Node("target").Type())
}

func TestMatches_Wildcard(t *testing.T) {
	t.Parallel()
	matches, text := run(t, `(call_statement receiver: (_) @recv)`, src)
	assert.Equal(t, []string{"self"}, captured(matches, "recv", text))
}

func TestMatches_Predicates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"eq", `((identifier) @id (#eq? @id "retry"))`, []string{"retry", "retry"}},
		{"not-eq", `((goto_statement target: (identifier) @id) (#not-eq? @id "retry"))`, nil},
		{"match case-insensitive", `(member_expression object: (identifier) @id (#match? @id "^(?i:level)$"))`, []string{"Level"}},
		{"not-match", `((scope) @id (#not-match? @id "^local$"))`, []string{"self"}},
		{"any-of", `((identifier) @id (#any-of? @id "helper" "other"))`, []string{"helper", "other"}},
		{"eq between captures", `(label_definition name: (identifier) @id (#eq? @id @id))`, []string{"retry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, text := run(t, tt.pattern, src)
			assert.Equal(t, tt.want, captured(matches, "id", text))
		})
	}
}

func TestMatches_SiblingOrder(t *testing.T) {
	t.Parallel()
	// Unfielded child steps match siblings in order, once per fit.
	matches, text := run(t, `(argument_list (identifier) @first (number) @second)`, "t:\n\tfoo a b 1\nend\n")
	require.Len(t, matches, 2)
	assert.Equal(t, []string{"a", "b"}, captured(matches, "first", text))
	assert.Equal(t, []string{"1", "1"}, captured(matches, "second", text))

	matches, _ = run(t, `(argument_list (number) (identifier))`, "t:\n\tfoo a 1\nend\n")
	assert.Empty(t, matches)
}

func TestMatches_NilRoot(t *testing.T) {
	t.Parallel()
	q, err := New("(identifier) @id", syntax.Morpheus())
	require.NoError(t, err)
	assert.Nil(t, q.Matches(nil, nil))
}

func TestMatches_EveryChild(t *testing.T) {
	t.Parallel()
	matches, text := run(t, `(parameter_list (scoped_variable name: (identifier) @id))`, "t local.a local.b:\nend\n")
	assert.Equal(t, []string{"a", "b"}, captured(matches, "id", text))
}

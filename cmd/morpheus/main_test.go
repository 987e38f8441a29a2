package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "maps", "dm")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveDBPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/repo", ".morpheus", "index.db"), resolveDBPath("", "/repo"))
	assert.Equal(t, filepath.Join("/repo", "snap.db"), resolveDBPath("snap.db", "/repo"))
	assert.Equal(t, "/tmp/x.db", resolveDBPath("/tmp/x.db", "/repo"))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	for _, f := range []string{"json", "text", "yaml"} {
		assert.NoError(t, validateFormat(f))
	}
	assert.Error(t, validateFormat("xml"))
}

func TestApplyEdits(t *testing.T) {
	t.Parallel()
	text := "main:\n\tlocal.counter = 0\n\tprintln local.counter\nend\n"
	edits := []protocol.TextEdit{
		{Range: protocol.Range{Start: protocol.Position{Line: 1, Character: 7}, End: protocol.Position{Line: 1, Character: 14}}, NewText: "total"},
		{Range: protocol.Range{Start: protocol.Position{Line: 2, Character: 15}, End: protocol.Position{Line: 2, Character: 22}}, NewText: "total"},
	}
	assert.Equal(t, "main:\n\tlocal.total = 0\n\tprintln local.total\nend\n", applyEdits(text, edits))
}

// =============================================================================
// Commands
// =============================================================================

type envelope struct {
	Command    string          `json:"command"`
	Results    json.RawMessage `json:"results"`
	TotalCount *int            `json:"total_count"`
	Error      string          `json:"error"`
}

// execute runs the root command with args and returns what it wrote to
// stdout. Flag variables are reset first since cobra keeps them between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })

	flagFormat, flagConfig, flagVerbose = "json", "", 0
	flagRoot, flagKind, flagSymbolsDB = "", "", ""
	flagIncludeDeclaration = true
	flagIndexDB, flagIndexForce = "", false
	flagWrite, flagInit = false, false
	flagScriptDB = ""
	errorHandled = false

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func decode(t *testing.T, out string, results any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	if results != nil {
		require.NoError(t, json.Unmarshal(env.Results, results), out)
	}
	return env
}

func writeScript(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheck_ReportsErrors(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "good.scr", "main:\n\tlocal.x = 1\nend\n")
	bad := writeScript(t, dir, "bad.scr", "main:\n\tlocal.x =\nend\n")

	out, err := execute(t, "check", dir)
	require.Error(t, err)
	assert.True(t, errorHandled)

	var diags []CLIDiagnostic
	env := decode(t, out, &diags)
	assert.Equal(t, "check", env.Command)
	require.NotEmpty(t, diags)
	for _, d := range diags {
		assert.Equal(t, bad, d.File)
	}
}

func TestCheck_Clean(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "good.scr", "main:\n\tlocal.x = 1\nend\n")
	writeScript(t, dir, "notes.txt", "main:\n\tlocal.x =\n")

	out, err := execute(t, "check", dir)
	require.NoError(t, err)
	var diags []CLIDiagnostic
	decode(t, out, &diags)
	assert.Empty(t, diags)
}

func TestQueryDefinition_CrossFile(t *testing.T) {
	dir := t.TempDir()
	one := writeScript(t, dir, "one.scr", "init:\n\tlevel.score = 0\nend\n")
	two := writeScript(t, dir, "two.scr", "main:\n\twait 1\n\tprintln level.score\nend\n")

	out, err := execute(t, "query", "definition", two, "2", "17", "--root", dir)
	require.NoError(t, err)
	var locs []CLILocation
	env := decode(t, out, &locs)
	require.Len(t, locs, 1)
	assert.Equal(t, one, locs[0].File)
	assert.Equal(t, 1, locs[0].StartLine)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 1, *env.TotalCount)
}

func TestQueryDefinition_BadLine(t *testing.T) {
	dir := t.TempDir()
	two := writeScript(t, dir, "two.scr", "main:\nend\n")

	out, err := execute(t, "query", "definition", two, "x", "0", "--root", dir)
	require.Error(t, err)
	env := decode(t, out, nil)
	assert.Contains(t, env.Error, "invalid line")
}

func TestQueryReferences(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a.scr", "main:\n\tthread helper\nend\n\nhelper:\nend\n")
	writeScript(t, dir, "b.scr", "other:\n\twaitthread helper\nend\n")

	out, err := execute(t, "query", "references", a, "4", "0", "--root", dir)
	require.NoError(t, err)
	var locs []CLILocation
	decode(t, out, &locs)
	assert.Len(t, locs, 3)

	out, err = execute(t, "query", "references", a, "4", "0", "--root", dir, "--include-declaration=false")
	require.NoError(t, err)
	decode(t, out, &locs)
	assert.Len(t, locs, 2)
}

func TestQueryStats_Suggestions(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "util.scr", "setup:\nend\n")

	out, err := execute(t, "query", "stats", "stup", "--root", dir)
	require.NoError(t, err)
	var st CLIStats
	decode(t, out, &st)
	assert.Zero(t, st.Definitions)
	assert.Contains(t, st.Suggestions, "setup")
}

func TestQueryThreads_Text(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "util.scr", "setup local.a local.b:\nend\n\nteardown:\nend\n")

	out, err := execute(t, "query", "threads", path, "--format", "text")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "setup")
	assert.Contains(t, lines[1], "local.a local.b")
	assert.Contains(t, lines[2], "teardown")
}

func TestRename_Write(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "a.scr", "main:\n\tlocal.counter = 0\n\tprintln local.counter\nend\n")

	out, err := execute(t, "rename", path, "2", "16", "total", "--root", dir, "--write")
	require.NoError(t, err)
	var edits []CLIEdit
	decode(t, out, &edits)
	assert.Len(t, edits, 2)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "main:\n\tlocal.total = 0\n\tprintln local.total\nend\n", string(content))
}

func TestRename_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "a.scr", "main:\n\tlocal.counter = 0\nend\n")

	out, err := execute(t, "rename", path, "1", "9", "9lives", "--root", dir)
	require.Error(t, err)
	env := decode(t, out, nil)
	assert.Contains(t, env.Error, "invalid name")
}

func TestIndex_ThenSymbolsFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "global/util.scr", "setup local.a:\n\tlevel.score = 0\nend\n")
	writeScript(t, dir, "maps/dm.scr", "main:\n\tthread global/util.scr::setup\nend\n")
	db := filepath.Join(t.TempDir(), "snap.db")

	out, err := execute(t, "index", dir, "--db", db)
	require.NoError(t, err)
	var summary CLIIndexSummary
	decode(t, out, &summary)
	assert.Equal(t, 2, summary.Loaded)
	assert.Equal(t, 2, summary.Exported)
	assert.Equal(t, 2, summary.Files)

	out, err = execute(t, "query", "symbols", "--db", db, "--root", dir, "--kind", "thread")
	require.NoError(t, err)
	var syms []CLISymbol
	decode(t, out, &syms)
	names := make([]string, 0, len(syms))
	for _, s := range syms {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"setup", "main"}, names)

	out, err = execute(t, "index", dir, "--db", db)
	require.NoError(t, err)
	decode(t, out, &summary)
	assert.Zero(t, summary.Exported, "unchanged files are not re-exported")
}

func TestQuerySymbols_Workspace(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "a.scr", "main:\n\tlocal.x = 1\nretry:\nend\n")

	out, err := execute(t, "query", "symbols", path, "--root", dir)
	require.NoError(t, err)
	var syms []CLISymbol
	decode(t, out, &syms)
	kinds := map[string]bool{}
	for _, s := range syms {
		kinds[s.Kind] = true
	}
	assert.True(t, kinds["thread"])
	assert.True(t, kinds["label"])
	assert.True(t, kinds["variable"])
}

func TestScript_Bundled(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.scr", "main:\nend\n\nhelper:\nend\n")

	out, err := execute(t, "script", "summary.risor", "--root", dir)
	require.NoError(t, err)
	var counts map[string]int
	decode(t, out, &counts)
	assert.Equal(t, 2, counts["thread"])
}

func TestScript_FromDisk(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.scr", "main:\nend\n")
	script := writeScript(t, t.TempDir(), "count.risor", "len(documents())\n")

	out, err := execute(t, "script", script, "--root", dir)
	require.NoError(t, err)
	var n int
	decode(t, out, &n)
	assert.Equal(t, 1, n)
}

func TestConfig_YAML(t *testing.T) {
	out, err := execute(t, "config", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "command: config")
	assert.Contains(t, out, "extensions:")
	assert.Contains(t, out, ".scr")
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "config", "--format", "xml")
	assert.Error(t, err)
}

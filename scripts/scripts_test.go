package scripts_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/morpheus"
	"github.com/jward/morpheus/internal/runtime"
	"github.com/jward/morpheus/scripts"
)

const utilScript = `setup local.a:
	level.score = 0
end

cleanup:
end
`

const mapScript = `main:
	thread global/util.scr::setup
	waitthread spawn
retry:
	goto retry
end

spawn:
end

cleanup:
end
`

func newRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	e := morpheus.New()
	require.NoError(t, e.Init(context.Background()))
	t.Cleanup(e.Close)
	e.OpenDocument("file:///global/util.scr", utilScript, 1)
	e.OpenDocument("file:///maps/dm.scr", mapScript, 1)

	rt := runtime.NewRuntime(e, "", runtime.WithRuntimeFS(scripts.FS), runtime.WithParser(e))
	t.Cleanup(rt.Close)
	return rt
}

func TestFS_ListsScripts(t *testing.T) {
	names, err := fs.Glob(scripts.FS, "*.risor")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"duplicates.risor", "summary.risor", "unreferenced.risor"}, names)
}

func TestSummary(t *testing.T) {
	rt := newRuntime(t)
	got, err := rt.RunScript(context.Background(), "summary.risor", nil)
	require.NoError(t, err)
	counts, ok := got.(map[string]any)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, int64(5), counts["thread"])
	assert.Equal(t, int64(1), counts["label"])
}

func TestUnreferenced(t *testing.T) {
	rt := newRuntime(t)
	got, err := rt.RunScript(context.Background(), "unreferenced.risor", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"cleanup", "main"}, got)
}

func TestDuplicates(t *testing.T) {
	rt := newRuntime(t)
	got, err := rt.RunScript(context.Background(), "duplicates.risor", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"cleanup"}, got)
}

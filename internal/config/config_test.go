package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{".scr"}, cfg.Index.Extensions)
	assert.Equal(t, 256, cfg.Index.PathCacheSize)
	assert.Equal(t, 3, cfg.Query.Suggestions)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Index, cfg.Index)
	assert.Equal(t, DefaultConfig().Log, cfg.Log)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, FileName, `
log:
  verbosity: 3
index:
  extensions: [".scr", ".st"]
  workers: 2
rename:
  reserved: [waitframe, wait]
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Log.Verbosity)
	assert.Equal(t, []string{".scr", ".st"}, cfg.Index.Extensions)
	assert.Equal(t, 2, cfg.Index.Workers)
	assert.Equal(t, 256, cfg.Index.PathCacheSize, "unset keys keep their default")
	assert.Equal(t, []string{"waitframe", "wait"}, cfg.Rename.Reserved)
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "custom.yaml", "query:\n  suggestions: 7\n")

	cfg, err := Load(t.TempDir(), path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Query.Suggestions)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, FileName, "log:\n  verbosity: 3\n")
	t.Setenv("MORPHEUS_LOG_VERBOSITY", "5")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Log.Verbosity)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".env", "MORPHEUS_QUERY_SUGGESTIONS=9\n")
	// Registers the variable with t so it is restored after the test.
	t.Setenv("MORPHEUS_QUERY_SUGGESTIONS", "")
	require.NoError(t, os.Unsetenv("MORPHEUS_QUERY_SUGGESTIONS"))

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Query.Suggestions)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"verbosity", "log:\n  verbosity: 9\n", "log.verbosity"},
		{"extension without dot", "index:\n  extensions: [scr]\n", "index.extensions"},
		{"negative workers", "index:\n  workers: -1\n", "index.workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, FileName, tt.content)
			_, err := Load(dir, "")
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Index.Workers = 4
	cfg.Rename.Reserved = []string{"waitframe"}
	require.NoError(t, cfg.Save(dir))

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "index")

	loaded, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Index.Workers)
	assert.Equal(t, []string{"waitframe"}, loaded.Rename.Reserved)
}

func TestEngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Len(t, cfg.EngineOptions(), 3)
	cfg.Rename.Reserved = []string{"waitframe"}
	assert.Len(t, cfg.EngineOptions(), 4)
}

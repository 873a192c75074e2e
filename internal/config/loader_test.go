package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mci.json")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "./mci.json", cfg.SchemaPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoader_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mci.json")
	content := `{
  "schema_path": "/srv/tools.mci.yaml",
  "watch": true,
  "data_dir": "` + dir + `",
  "logging": {"level": "debug", "pretty": false}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/srv/tools.mci.yaml", cfg.SchemaPath)
	assert.True(t, cfg.Watch)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Pretty)
}

func TestLoader_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mci.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"logging": {"level": "loud"}}`), 0644))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mci.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.SchemaPath = "/srv/tools.mci.json"
	cfg.Watch = true
	cfg.DataDir = dir
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/tools.mci.json", loaded.SchemaPath)
	assert.True(t, loaded.Watch)
}

func TestLoader_GetConfigPath(t *testing.T) {
	assert.Equal(t, "/x/mci.json", NewLoader("/x/mci.json").GetConfigPath())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".mci", "mci.json"), NewLoader("").GetConfigPath())
}

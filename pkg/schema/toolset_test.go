package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolsetJSON(tools string) string {
	return `{"schemaVersion": "1.0", "tools": [` + tools + `]}`
}

const (
	toolAlpha = `{"name": "alpha", "tags": ["io"], "execution": {"type": "text", "text": "a"}}`
	toolBeta  = `{"name": "beta", "tags": ["net"], "execution": {"type": "text", "text": "b"}}`
	toolGamma = `{"name": "gamma", "tags": ["io", "net"], "execution": {"type": "text", "text": "c"}}`
)

func writeSchemaWithToolsets(t *testing.T, dir, toolsets string) string {
	t.Helper()
	return writeFile(t, dir, "main.mci.json",
		`{"schemaVersion": "1.0", "toolsets": [`+toolsets+`]}`)
}

func TestLoadToolsets_FromFile(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "mci")
	require.NoError(t, os.MkdirAll(libDir, 0755))
	writeFile(t, libDir, "files.mci.json", toolsetJSON(toolAlpha+","+toolBeta))
	path := writeSchemaWithToolsets(t, dir, `{"name": "files"}`)

	s, err := ParseFile(path)

	require.NoError(t, err)
	require.Len(t, s.Tools, 2)
	assert.Equal(t, "alpha", s.Tools[0].Name)
	assert.Equal(t, "files", s.Tools[0].ToolsetSource)
	assert.Equal(t, "files", s.Tools[1].ToolsetSource)
}

func TestLoadToolsets_YAMLExtension(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "mci")
	require.NoError(t, os.MkdirAll(libDir, 0755))
	writeFile(t, libDir, "web.mci.yaml", `
schemaVersion: "1.0"
tools:
  - name: ping
    execution:
      type: text
      text: pong
`)
	path := writeSchemaWithToolsets(t, dir, `{"name": "web"}`)

	s, err := ParseFile(path)

	require.NoError(t, err)
	require.Len(t, s.Tools, 1)
	assert.Equal(t, "ping", s.Tools[0].Name)
}

func TestLoadToolsets_DirectoryMerge(t *testing.T) {
	dir := t.TempDir()
	tsDir := filepath.Join(dir, "mci", "bundle")
	require.NoError(t, os.MkdirAll(tsDir, 0755))
	writeFile(t, tsDir, "a.mci.json", toolsetJSON(toolAlpha))
	writeFile(t, tsDir, "b.mci.json", toolsetJSON(toolBeta))
	path := writeSchemaWithToolsets(t, dir, `{"name": "bundle"}`)

	s, err := ParseFile(path)

	require.NoError(t, err)
	assert.Len(t, s.Tools, 2)
}

func TestLoadToolsets_DirectoryVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	tsDir := filepath.Join(dir, "mci", "bundle")
	require.NoError(t, os.MkdirAll(tsDir, 0755))
	writeFile(t, tsDir, "a.mci.json", toolsetJSON(toolAlpha))
	// parseToolsetFile rejects the unsupported version before the merge
	// gets a chance to compare.
	writeFile(t, tsDir, "b.mci.json", `{"schemaVersion": "2.0", "tools": [`+toolBeta+`]}`)
	path := writeSchemaWithToolsets(t, dir, `{"name": "bundle"}`)

	_, err := ParseFile(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestLoadToolsets_MissingLibraryDir(t *testing.T) {
	dir := t.TempDir()
	path := writeSchemaWithToolsets(t, dir, `{"name": "files"}`)

	_, err := ParseFile(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "library directory not found")
}

func TestLoadToolsets_NotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mci"), 0755))
	path := writeSchemaWithToolsets(t, dir, `{"name": "ghost"}`)

	_, err := ParseFile(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "toolset not found")
}

func TestLoadToolsets_CustomLibraryDir(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(libDir, 0755))
	writeFile(t, libDir, "files.mci.json", toolsetJSON(toolAlpha))
	path := writeFile(t, dir, "main.mci.json",
		`{"schemaVersion": "1.0", "libraryDir": "./library", "toolsets": [{"name": "files"}]}`)

	s, err := ParseFile(path)

	require.NoError(t, err)
	assert.Len(t, s.Tools, 1)
}

func TestApplyToolsetFilter(t *testing.T) {
	tools := []Tool{
		{Name: "alpha", Tags: []string{"io"}},
		{Name: "beta", Tags: []string{"net"}},
		{Name: "gamma", Tags: []string{"io", "net"}},
	}

	names := func(ts []Tool) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.Name)
		}
		return out
	}

	tests := []struct {
		name        string
		filter      string
		filterValue string
		want        []string
	}{
		{"only single", "only", "beta", []string{"beta"}},
		{"only multiple", "only", "alpha, gamma", []string{"alpha", "gamma"}},
		{"except", "except", "beta", []string{"alpha", "gamma"}},
		{"tags", "tags", "io", []string{"alpha", "gamma"}},
		{"tags multiple", "tags", "io,net", []string{"alpha", "beta", "gamma"}},
		{"withoutTags", "withoutTags", "net", []string{"alpha"}},
		{"only no match", "only", "missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyToolsetFilter(tools, tt.filter, tt.filterValue)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}

	t.Run("invalid filter type", func(t *testing.T) {
		_, err := applyToolsetFilter(tools, "include", "alpha")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid filter type")
	})

	t.Run("empty filter value", func(t *testing.T) {
		_, err := applyToolsetFilter(tools, "only", " , ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be empty")
	})
}

func TestLoadToolsets_FilterApplied(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "mci")
	require.NoError(t, os.MkdirAll(libDir, 0755))
	writeFile(t, libDir, "files.mci.json", toolsetJSON(toolAlpha+","+toolBeta+","+toolGamma))
	path := writeSchemaWithToolsets(t, dir, `{"name": "files", "filter": "tags", "filterValue": "io"}`)

	s, err := ParseFile(path)

	require.NoError(t, err)
	require.Len(t, s.Tools, 2)
	assert.Equal(t, "alpha", s.Tools[0].Name)
	assert.Equal(t, "gamma", s.Tools[1].Name)
}

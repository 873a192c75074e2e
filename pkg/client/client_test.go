package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientSchema = `{
  "schemaVersion": "1.0",
  "tools": [
    {"name": "greet", "tags": ["demo"], "execution": {"type": "text", "text": "Hello {{props.name}}! Key: {{env.API_KEY}}"}},
    {"name": "bye", "tags": ["demo", "farewell"], "execution": {"type": "text", "text": "Bye"}},
    {"name": "other", "execution": {"type": "text", "text": "x"}}
  ]
}`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.mci.json")
	require.NoError(t, os.WriteFile(path, []byte(clientSchema), 0644))

	c, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_Tools(t *testing.T) {
	c := newTestClient(t)

	assert.Len(t, c.Tools(), 3)
}

func TestClient_Filters(t *testing.T) {
	c := newTestClient(t)

	assert.Len(t, c.Only("greet"), 1)
	assert.Len(t, c.Without("greet"), 2)
	assert.Len(t, c.ByTags("demo"), 2)
	assert.Len(t, c.WithoutTags("demo"), 1)
	assert.Empty(t, c.FromToolsets("web"))
}

func TestClient_ExecuteWithCallerEnv(t *testing.T) {
	c := newTestClient(t)

	// env comes only from the caller, never from the process environment
	t.Setenv("API_KEY", "from-process")

	res, err := c.Execute(context.Background(), "greet",
		map[string]any{"name": "Ana"},
		map[string]any{"API_KEY": "from-caller"})

	require.NoError(t, err)
	require.False(t, res.IsError, res.Error)
	assert.Equal(t, "Hello Ana! Key: from-caller", res.Text())
}

func TestClient_ExecuteMissingEnvIsFault(t *testing.T) {
	c := newTestClient(t)

	res, err := c.Execute(context.Background(), "greet",
		map[string]any{"name": "Ana"}, nil)

	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestClient_SchemaFileMissing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.mci.json"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_NestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = [valid"), 0o600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_ReadsSections(t *testing.T) {
	dir := t.TempDir()
	content := `
[chunking]
strategy = "markdown"
max_size = 800

[retrieval]
threshold = 0.25
top_k = 3

[embedding]
fallback = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "markdown", store.GetString("chunking.strategy"))
	assert.Equal(t, 800, store.GetInt("chunking.max_size"))
	assert.InDelta(t, 0.25, store.GetFloat("retrieval.threshold"), 1e-9)
	assert.Equal(t, 3, store.GetInt("retrieval.top_k"))
	assert.InDelta(t, 3.0, store.GetFloat("retrieval.top_k"), 1e-9)
	assert.True(t, store.GetBool("embedding.fallback"))
}

func TestConfigStore_Getters_WrongType(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("k", []int{1}))

	assert.Empty(t, store.GetString("k"))
	assert.Zero(t, store.GetInt("k"))
	assert.Zero(t, store.GetFloat("k"))
	assert.False(t, store.GetBool("k"))
	assert.Empty(t, store.GetString("missing"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_SetDoesNotPersist(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("llm.model", "mistral"))

	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestConfigStore_SetInvalidKey(t *testing.T) {
	store := newTestConfigStore(t)
	assert.Error(t, store.Set("", 1))
	assert.Error(t, store.Set(".a", 1))
	assert.Error(t, store.Set("a.", 1))
}

func TestConfigStore_SaveReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.provider", "openai"))
	require.NoError(t, store.Set("llm.api_key", "sk-test"))
	require.NoError(t, store.Set("retrieval.threshold", 0.7))
	require.NoError(t, store.Set("worker.concurrency", 8))
	require.NoError(t, store.Set("user.id", "alice"))
	require.NoError(t, store.Save())

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[llm]")
	assert.NotContains(t, string(raw), `"llm.provider"`)

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "openai", reloaded.GetString("llm.provider"))
	assert.Equal(t, "sk-test", reloaded.GetString("llm.api_key"))
	assert.InDelta(t, 0.7, reloaded.GetFloat("retrieval.threshold"), 1e-9)
	assert.Equal(t, 8, reloaded.GetInt("worker.concurrency"))
	assert.Equal(t, "alice", reloaded.GetString("user.id"))
	assert.Equal(t, store.Keys(), reloaded.Keys())
}

func TestConfigStore_SaveConflict(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("llm", "x"))
	require.NoError(t, store.Set("llm.model", "y"))

	assert.Error(t, store.Save())
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("a.b", 1))
	require.NoError(t, store.Save())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_LoadDiscardsUnsaved(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("a.b", 1))
	require.NoError(t, store.Load())

	_, ok := store.Get("a.b")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newTestConfigStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("worker.concurrency", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("worker.concurrency")
		}()
	}
	wg.Wait()
}

func TestNestMap(t *testing.T) {
	nested, err := nestMap(map[string]any{"a.b.c": 1, "a.d": "x", "e": true})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, nested)
	assert.Equal(t, map[string]any{"a.b.c": 1, "a.d": "x", "e": true}, flattenMap(nested, ""))
}

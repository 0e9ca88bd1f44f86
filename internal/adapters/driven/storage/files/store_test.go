package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

func TestStore_SaveAndPath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	name, err := store.Save(context.Background(), ".TXT", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".txt"))
	assert.Len(t, strings.TrimSuffix(name, ".txt"), 36)

	data, err := os.ReadFile(store.Path(name))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStore_SaveAddsDot(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save(context.Background(), "md", strings.NewReader("# hi"))
	require.NoError(t, err)
	assert.Equal(t, ".md", filepath.Ext(name))
}

func TestStore_SaveUniqueNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.Save(context.Background(), ".txt", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Save(context.Background(), ".txt", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStore_SaveRejectsSeparator(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "../x", strings.NewReader("a"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestStore_SaveCleansUpOnReadError(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), ".txt", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_PathStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "passwd"), store.Path("../../etc/passwd"))
}

func TestStore_Remove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	name, err := store.Save(ctx, ".txt", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, name))
	_, err = os.Stat(store.Path(name))
	assert.True(t, os.IsNotExist(err))

	// Second removal is a no-op.
	assert.NoError(t, store.Remove(ctx, name))
	assert.NoError(t, store.Remove(ctx, ""))
}

func TestStore_CancelledContext(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Save(ctx, ".txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

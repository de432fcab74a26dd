package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectNameKeepsOriginalFilename(t *testing.T) {
	name := ObjectName("receipt.png")

	assert.True(t, strings.HasSuffix(name, "_receipt.png"))
	// uuid prefix: 36 chars plus the separator
	assert.Len(t, name, 36+1+len("receipt.png"))
}

func TestObjectNameIsUniquePerCall(t *testing.T) {
	assert.NotEqual(t, ObjectName("a.png"), ObjectName("a.png"))
}

func TestLocalStorageSave(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir)
	require.NoError(t, err)

	path, err := ls.Save(context.Background(), "receipt.png", []byte("image-bytes"), "image/png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, dir))
	assert.True(t, strings.HasSuffix(path, "_receipt.png"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestLocalStorageCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	_, err := NewLocalStorage(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

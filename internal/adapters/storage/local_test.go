// internal/adapters/storage/local_test.go
package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pos-ledger/internal/adapters/storage"
	"github.com/ammerola/pos-ledger/test/helpers"
)

func TestLocalStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := storage.NewLocalStorage(dir, helpers.TestLogger())
	key := "exports/sale/job-1.xlsx"

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	path, err := store.Upload(ctx, key, strings.NewReader("workbook"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exports", "sale", "job-1.xlsx"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	url, err := store.GetPresignedURL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "file://"+path, url)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_KeysStayInsideBase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := storage.NewLocalStorage(dir, helpers.TestLogger())

	path, err := store.Upload(ctx, "../../escape.xlsx", strings.NewReader("x"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.xlsx"), path)
}

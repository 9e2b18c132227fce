package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	store, err := New(&Config{LocalPath: t.TempDir()})
	require.NoError(t, err)

	info, err := store.Save(context.Background(), "revenue.csv", "text/csv", strings.NewReader("Date,Amount\n"))
	require.NoError(t, err)
	assert.Equal(t, "revenue.csv", info.Name)
	assert.Equal(t, int64(12), info.Size)

	rc, got, err := store.Open(context.Background(), info.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, info.ID, got.ID)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "Date,Amount\n", string(data))

	require.NoError(t, store.Delete(context.Background(), info.ID))
	_, _, err = store.Open(context.Background(), info.ID)
	assert.Error(t, err)
}

package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pinash124/bike-hub-sub000/internal/store"
	"github.com/Pinash124/bike-hub-sub000/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "token", []byte("T1")))
	require.NoError(t, s.Set(ctx, "cart_items", []byte(`[{"productId":"p1"}]`)))
	require.NoError(t, s.Delete(ctx, "cart_items"))

	reopened, err := Open(path)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "T1", string(got))

	_, err = reopened.Get(ctx, "cart_items")
	assert.Error(t, err)
}

func TestOpen_EmptyFileIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.data)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode store file")
}

func TestStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "role", []byte(`"buyer"`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestStore_Ping(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}

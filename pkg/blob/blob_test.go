package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "zuno-workspaces")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "zuno-workspaces", []byte(`[{"id":"ws_1"}]`)))
	got, ok, err := s.Get(ctx, "zuno-workspaces")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"ws_1"}]`, string(got))

	require.NoError(t, s.Put(ctx, "zuno-workspaces", []byte(`[]`)))
	got, _, err = s.Get(ctx, "zuno-workspaces")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, s.Put(ctx, "zuno-theme", []byte(`"dark"`)))
	got, _, err = s.Get(ctx, "zuno-workspaces")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got), "keys are independent")
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files are cleaned up")
}

func TestFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore(" ")
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zuno.db")
	s, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	// Values survive reopening.
	s, err = NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.Get(context.Background(), "zuno-theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"dark"`, string(got))
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	raw, err := mr.Get("test:zuno-workspaces")
	require.NoError(t, err)
	assert.Equal(t, `[]`, raw)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), RedisOptions{Addr: addr})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, Config{Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, Config{Driver: "sqlite", Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "zuno.db"))

	_, err = Open(ctx, Config{Driver: "etcd"})
	assert.Error(t, err)
}

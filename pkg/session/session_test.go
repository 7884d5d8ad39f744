package session

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/plantshare/pkg/config"
)

func TestStores(t *testing.T) {
	stores := []struct {
		name string
		make func(t *testing.T) Store
	}{
		{
			name: "file",
			make: func(t *testing.T) Store {
				return NewFileStore(filepath.Join(t.TempDir(), "plantshare"))
			},
		},
		{
			name: "redis",
			make: func(t *testing.T) Store {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { client.Close() })
				return NewRedisStore(client)
			},
		},
	}

	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			ctx := context.Background()
			store := st.make(t)

			tok, err := store.Load(ctx, "github")
			require.NoError(t, err, "loading a missing session should succeed")
			assert.Nil(t, tok, "missing session should be nil")

			want := &Token{Backend: "github", User: "octocat", Value: "ghp_123", CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
			require.NoError(t, store.Save(ctx, want), "Save should succeed")

			got, err := store.Load(ctx, "github")
			require.NoError(t, err, "Load should succeed")
			assert.Equal(t, want, got, "token should round trip")

			other, err := store.Load(ctx, "s3")
			require.NoError(t, err, "Load should succeed")
			assert.Nil(t, other, "sessions are kept per backend")

			require.NoError(t, store.Delete(ctx, "github"), "Delete should succeed")
			require.NoError(t, store.Delete(ctx, "github"), "Delete should be repeatable")

			tok, err = store.Load(ctx, "github")
			require.NoError(t, err, "Load should succeed")
			assert.Nil(t, tok, "deleted session should be gone")

			_, err = store.Load(ctx, "../escape")
			assert.Error(t, err, "path-like backend names should be rejected")
		})
	}
}

func TestFileStorePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not portable")
	}
	dir := filepath.Join(t.TempDir(), "plantshare")
	store := NewFileStore(dir)
	require.NoError(t, store.Save(context.Background(), &Token{Backend: "s3", Value: "x"}), "Save should succeed")

	info, err := os.Stat(filepath.Join(dir, "session-s3.json"))
	require.NoError(t, err, "session file should exist")
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "session file should be private")
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session-github.json"), []byte("{"), 0600), "write should succeed")

	_, err := NewFileStore(dir).Load(context.Background(), "github")
	assert.ErrorContains(t, err, "parsing session", "corrupt session should fail")
}

func TestNew(t *testing.T) {
	store, err := New(config.SessionConfig{Store: "file", Dir: t.TempDir()})
	require.NoError(t, err, "file store should be created")
	assert.IsType(t, &FileStore{}, store, "file store expected")

	mr := miniredis.RunT(t)
	store, err = New(config.SessionConfig{Store: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err, "redis store should be created")
	require.IsType(t, &RedisStore{}, store, "redis store expected")
	require.NoError(t, store.Save(context.Background(), &Token{Backend: "github", Value: "v"}), "Save should reach redis")
	assert.True(t, mr.Exists("plantshare:session:github"), "key should be written")
	require.NoError(t, store.(*RedisStore).Close(), "Close should succeed")

	_, err = New(config.SessionConfig{Store: "etcd"})
	assert.ErrorContains(t, err, "unknown session store", "unknown store should fail")
}

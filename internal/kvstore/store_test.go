package kvstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/pmcore/internal/kvstore"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/testutil"
)

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, s kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "@missing")
	require.NoError(t, err)
	assert.False(t, ok, "missing key must report ok=false")

	require.NoError(t, s.Set(ctx, "@notifications", `[{"id":"1"}]`))
	v, ok, err := s.Get(ctx, "@notifications")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, v)

	require.NoError(t, s.Set(ctx, "@notifications", `[]`))
	v, _, err = s.Get(ctx, "@notifications")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v, "Set must replace the previous value")

	require.NoError(t, s.Set(ctx, "@offline_data", `[{"timestamp":1}]`))
	require.NoError(t, s.Remove(ctx, "@offline_data"))
	_, ok, err = s.Get(ctx, "@offline_data")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(ctx, "@offline_data"), "removing a missing key is not an error")

	v, ok, err = s.Get(ctx, "@notifications")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
	assert.Equal(t, `[]`, v)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, kvstore.NewMemoryStore())
}

func TestMemoryStoreClosed(t *testing.T) {
	s := kvstore.NewMemoryStore()
	require.NoError(t, s.Close())

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, kvstore.ErrClosed)
	assert.ErrorIs(t, s.Set(context.Background(), "k", "v"), kvstore.ErrClosed)
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, testutil.NewTestSQLite(t))
}

func TestSQLiteStoreMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "pmcore.db")

	s, err := kvstore.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "k", "v"))
	require.NoError(t, s.Close())

	s, err = kvstore.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	v, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok, "value must survive reopening")
	assert.Equal(t, "v", v)
}

func TestKeyringStore(t *testing.T) {
	exerciseStore(t, kvstore.NewKeyringStore(keyring.NewArrayKeyring(nil)))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := kvstore.NewRedisStore(client, "pmcore:")
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)

	got, err := mr.Get("pmcore:@notifications")
	require.NoError(t, err)
	assert.Equal(t, `[]`, got, "keys are stored under the prefix")
}

func TestOpenRedisPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := kvstore.OpenRedis(context.Background(), addr, 0, "")
	assert.Error(t, err)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := kvstore.Open(ctx, model.StorageConfig{Backend: model.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &kvstore.MemoryStore{}, s)

	s, err = kvstore.Open(ctx, model.StorageConfig{
		Backend:    model.BackendSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "kv.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &kvstore.SQLiteStore{}, s)
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = kvstore.Open(ctx, model.StorageConfig{Backend: model.BackendRedis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &kvstore.RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = kvstore.Open(ctx, model.StorageConfig{Backend: "floppy"})
	assert.Error(t, err)
}

func TestFailingStore(t *testing.T) {
	ctx := context.Background()
	f := kvstore.NewFailingStore(kvstore.NewMemoryStore())

	f.FailWrites(assert.AnError)
	assert.ErrorIs(t, f.Set(ctx, "k", "v"), assert.AnError)
	assert.ErrorIs(t, f.Remove(ctx, "k"), assert.AnError)

	f.FailWrites(nil)
	require.NoError(t, f.Set(ctx, "k", "v"))

	f.FailGet(assert.AnError)
	_, _, err := f.Get(ctx, "k")
	assert.ErrorIs(t, err, assert.AnError)

	sets, removes := f.Writes()
	assert.Equal(t, 2, sets)
	assert.Equal(t, 1, removes)
}

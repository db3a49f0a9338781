package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/bivouac/pkg/adapters/redis"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

func newClient(t *testing.T) *backend.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore_Contract(t *testing.T) {
	store := redis.NewStoreFromClient(newClient(t))
	ports.RunStorageContract(t, store)
}

func TestRedisStore_WatchContract(t *testing.T) {
	store := redis.NewStoreFromClient(newClient(t))
	ports.RunWatchContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})

	store := redis.NewStoreFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.DocWatch, map[string]any{"locked": false}))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, domain.DocWatch)

	// Expire the key; List prunes it from the index lazily.
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, domain.DocWatch)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, domain.DocWatch)
}

func TestRedisStore_PrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})

	a := redis.NewStoreFromClient(client, redis.WithPrefix("session-a:"))
	b := redis.NewStoreFromClient(client, redis.WithPrefix("session-b:"))
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, domain.DocSync, map[string]any{"mode": "party"}))

	_, err := b.Load(ctx, domain.DocSync)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	blob, err := a.Load(ctx, domain.DocSync)
	require.NoError(t, err)
	assert.Equal(t, "party", blob["mode"])
}

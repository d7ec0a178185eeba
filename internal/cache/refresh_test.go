package cache_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hyochang098/auth-template/internal/cache"
)

func TestRefreshCacheStoreAndGet(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	mirror, err := cache.NewRefreshTokenCache(client, 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer mirror.Close()

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	mirror.Store(ctx, 7, "hash-value", expiry)

	entry, ok := mirror.Get(ctx, 7)
	require.True(t, ok)
	require.Equal(t, "hash-value", entry.TokenHash)

	raw, err := mr.Get("refreshToken:7")
	require.NoError(t, err)
	var payload struct {
		Hash string `json:"hash"`
		Exp  string `json:"exp"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	decoded, err := base64.StdEncoding.DecodeString(payload.Hash)
	require.NoError(t, err)
	require.Equal(t, "hash-value", string(decoded))
	require.Equal(t, expiry.Format("2006-01-02T15:04:05"), payload.Exp)
}

func TestRefreshCacheMissForUnknownUser(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)

	mirror, err := cache.NewRefreshTokenCache(client, 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer mirror.Close()

	_, ok := mirror.Get(ctx, 999)
	require.False(t, ok)
}

func TestRefreshCachePromotesFromRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	writer, err := cache.NewRefreshTokenCache(client, 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer writer.Close()
	writer.Store(ctx, 7, "hash-value", time.Now().Add(time.Hour))

	reader, err := cache.NewRefreshTokenCache(client, 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer reader.Close()

	entry, ok := reader.Get(ctx, 7)
	require.True(t, ok)
	require.Equal(t, "hash-value", entry.TokenHash)

	// Promoted into the local tier: survives the shared entry vanishing.
	mr.FlushAll()
	entry, ok = reader.Get(ctx, 7)
	require.True(t, ok)
	require.Equal(t, "hash-value", entry.TokenHash)
}

func TestRefreshCacheExpiredEntryEvicted(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	mirror, err := cache.NewRefreshTokenCache(client, 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer mirror.Close()

	mirror.Store(ctx, 7, "stale", time.Now().Add(-time.Minute))

	_, ok := mirror.Get(ctx, 7)
	require.False(t, ok)
	require.False(t, mr.Exists("refreshToken:7"))
}

func TestRefreshCacheMalformedPayloadIsMiss(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	mirror, err := cache.NewRefreshTokenCache(client, 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer mirror.Close()

	for _, raw := range []string{
		"not-json",
		`{"hash":"","exp":""}`,
		`{"hash":"!!!not-base64!!!","exp":"2099-01-01T00:00:00"}`,
		`{"hash":"aGFzaA==","exp":"January 1st"}`,
	} {
		require.NoError(t, mr.Set("refreshToken:7", raw))
		_, ok := mirror.Get(ctx, 7)
		require.False(t, ok, "payload %q", raw)
	}
}

func TestRefreshCacheEvict(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	mirror, err := cache.NewRefreshTokenCache(client, 15*time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer mirror.Close()

	mirror.Store(ctx, 7, "hash-value", time.Now().Add(time.Hour))
	mirror.Evict(ctx, 7)

	_, ok := mirror.Get(ctx, 7)
	require.False(t, ok)
	require.False(t, mr.Exists("refreshToken:7"))
}

func TestRefreshCacheZeroTTLSkipsRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	mirror, err := cache.NewRefreshTokenCache(client, 0, zap.NewNop())
	require.NoError(t, err)
	defer mirror.Close()

	mirror.Store(ctx, 7, "hash-value", time.Now().Add(time.Hour))
	require.False(t, mr.Exists("refreshToken:7"))

	// The local tier still serves the entry.
	entry, ok := mirror.Get(ctx, 7)
	require.True(t, ok)
	require.Equal(t, "hash-value", entry.TokenHash)
}

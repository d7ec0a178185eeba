package cache_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hyochang098/auth-template/internal/cache"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "blacklist:access:" + hex.EncodeToString(sum[:])
}

func TestRevokeAndLookup(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	store, err := cache.NewRevocationStore(client, time.Minute, 0, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.False(t, store.IsRevoked(ctx, "some-token"))

	store.Revoke(ctx, "some-token", 2*time.Minute)
	require.True(t, store.IsRevoked(ctx, "some-token"))

	require.True(t, mr.Exists(blacklistKey("some-token")))
	ttl := mr.TTL(blacklistKey("some-token"))
	require.Greater(t, ttl, time.Minute)
	require.LessOrEqual(t, ttl, 2*time.Minute)
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	store, err := cache.NewRevocationStore(client, time.Minute, 0, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	store.Revoke(ctx, "expired-token", 0)
	require.False(t, store.IsRevoked(ctx, "expired-token"))
	require.False(t, mr.Exists(blacklistKey("expired-token")))
}

func TestRevokeDefaultTTLOverride(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	store, err := cache.NewRevocationStore(client, time.Minute, 5*time.Minute, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	store.Revoke(ctx, "token", 0)
	require.True(t, store.IsRevoked(ctx, "token"))
	require.True(t, mr.Exists(blacklistKey("token")))
}

func TestLookupPromotesFromRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	writer, err := cache.NewRevocationStore(client, time.Minute, 0, zap.NewNop())
	require.NoError(t, err)
	defer writer.Close()
	writer.Revoke(ctx, "shared-token", time.Minute)

	// A second store sharing Redis simulates another instance; its local
	// tier is cold and must learn the revocation from the shared tier.
	reader, err := cache.NewRevocationStore(client, time.Minute, 0, zap.NewNop())
	require.NoError(t, err)
	defer reader.Close()
	require.True(t, reader.IsRevoked(ctx, "shared-token"))

	// Still revoked on this instance after the shared entry disappears.
	mr.FlushAll()
	require.True(t, reader.IsRevoked(ctx, "shared-token"))
}

func TestRedisDownDegradesToLocalOnly(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	store, err := cache.NewRevocationStore(client, time.Minute, 0, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	mr.Close()

	store.Revoke(ctx, "token", time.Minute)
	require.True(t, store.IsRevoked(ctx, "token"))
	require.False(t, store.IsRevoked(ctx, "other-token"))
}

package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const refreshKeyPrefix = "refreshToken:"

// expiryLayout is the timezone-naive timestamp format used for the
// distributed payload; it matches the values written by earlier revisions
// of the service.
const expiryLayout = "2006-01-02T15:04:05"

// RefreshEntry is the cached mirror of a user's durable refresh-token
// record: the opaque secret hash and the record's own expiry.
type RefreshEntry struct {
	TokenHash string
	ExpiresAt time.Time
}

// IsExpired reports whether the mirrored record's expiry has passed.
func (e RefreshEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now)
}

type refreshPayload struct {
	Hash string `json:"hash"`
	Exp  string `json:"exp"`
}

// RefreshTokenCache accelerates refresh-token lookups. It is a cache-aside
// mirror of the durable repository, never the source of truth: absence here
// says nothing about the durable store, and the distributed copy may expire
// and be regenerated from the durable record on a later read.
type RefreshTokenCache struct {
	local  *ristretto.Cache[int64, RefreshEntry]
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRefreshTokenCache builds the cache. ttl is the distributed-tier cache
// horizon; zero disables the distributed write entirely.
func NewRefreshTokenCache(rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) (*RefreshTokenCache, error) {
	local, err := ristretto.NewCache(&ristretto.Config[int64, RefreshEntry]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.L()
	}
	return &RefreshTokenCache{local: local, rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Get returns the cached entry for the user, consulting the local tier
// first and Redis on a local miss. An entry whose record expiry has passed
// is evicted from both tiers and reported as a miss; a malformed
// distributed payload is treated the same way, never as an error.
func (c *RefreshTokenCache) Get(ctx context.Context, userID int64) (RefreshEntry, bool) {
	now := time.Now()

	if entry, ok := c.local.Get(userID); ok {
		if entry.IsExpired(now) {
			c.Evict(ctx, userID)
			return RefreshEntry{}, false
		}
		return entry, true
	}

	if c.rdb == nil {
		return RefreshEntry{}, false
	}
	raw, err := c.rdb.Get(ctx, refreshKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("refresh cache read degraded to miss", zap.Error(err))
		}
		return RefreshEntry{}, false
	}

	entry, ok := decodeRefreshEntry(raw)
	if !ok || entry.IsExpired(now) {
		c.Evict(ctx, userID)
		return RefreshEntry{}, false
	}

	c.setLocal(userID, entry)
	return entry, true
}

// Store writes through both tiers: the local tier unconditionally, the
// distributed tier only when a cache horizon is configured. A Redis failure
// is logged and swallowed; the local copy and the durable record remain
// authoritative.
func (c *RefreshTokenCache) Store(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) {
	entry := RefreshEntry{TokenHash: tokenHash, ExpiresAt: expiresAt}
	c.setLocal(userID, entry)

	if c.rdb == nil || c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(refreshPayload{
		Hash: base64.StdEncoding.EncodeToString([]byte(tokenHash)),
		Exp:  expiresAt.Format(expiryLayout),
	})
	if err != nil {
		c.logger.Warn("refresh cache serialize failed", zap.Int64("user_id", userID))
		return
	}
	if err := c.rdb.Set(ctx, refreshKey(userID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("refresh cache write lost", zap.Error(err))
	}
}

// Evict removes the user's entry from both tiers.
func (c *RefreshTokenCache) Evict(ctx context.Context, userID int64) {
	c.local.Del(userID)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, refreshKey(userID)).Err(); err != nil && err != redis.Nil {
		c.logger.Warn("refresh cache evict failed", zap.Error(err))
	}
}

// Close releases the local tier.
func (c *RefreshTokenCache) Close() {
	c.local.Close()
}

func (c *RefreshTokenCache) setLocal(userID int64, entry RefreshEntry) {
	if c.ttl > 0 {
		c.local.SetWithTTL(userID, entry, 1, c.ttl)
	} else {
		c.local.Set(userID, entry, 1)
	}
	c.local.Wait()
}

func refreshKey(userID int64) string {
	return refreshKeyPrefix + strconv.FormatInt(userID, 10)
}

func decodeRefreshEntry(raw string) (RefreshEntry, bool) {
	var p refreshPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return RefreshEntry{}, false
	}
	if p.Hash == "" || p.Exp == "" {
		return RefreshEntry{}, false
	}
	hash, err := base64.StdEncoding.DecodeString(p.Hash)
	if err != nil {
		return RefreshEntry{}, false
	}
	exp, err := time.ParseInLocation(expiryLayout, p.Exp, time.Local)
	if err != nil {
		return RefreshEntry{}, false
	}
	return RefreshEntry{TokenHash: string(hash), ExpiresAt: exp}, true
}

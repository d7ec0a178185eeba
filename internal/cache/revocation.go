// Package cache holds the two-tier (process-local + Redis) caches backing
// access-token revocation and refresh-token lookups. The local tier is a
// ristretto cache; the distributed tier is shared across instances and is
// best-effort, never authoritative.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const revocationKeyPrefix = "blacklist:access:"

// RevocationStore records access tokens that must be rejected before their
// natural expiry. Entries carry the token's remaining validity as TTL, so
// the store only ever holds currently-live revoked tokens.
type RevocationStore struct {
	local      *ristretto.Cache[string, bool]
	rdb        redis.UniversalClient
	localTTL   time.Duration
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewRevocationStore builds the store. defaultTTL overrides a non-positive
// per-call TTL when set; zero keeps the no-op behavior.
func NewRevocationStore(rdb redis.UniversalClient, localTTL, defaultTTL time.Duration, logger *zap.Logger) (*RevocationStore, error) {
	local, err := ristretto.NewCache(&ristretto.Config[string, bool]{
		NumCounters: 500_000,
		MaxCost:     50_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.L()
	}
	if localTTL <= 0 {
		localTTL = 30 * time.Minute
	}
	return &RevocationStore{
		local:      local,
		rdb:        rdb,
		localTTL:   localTTL,
		defaultTTL: defaultTTL,
		logger:     logger,
	}, nil
}

// IsRevoked checks the local tier first, then Redis. A Redis hit is
// promoted into the local tier. Negative results are never cached, since a
// token can be revoked at any point until its natural expiry; a Redis error
// degrades to a miss.
func (s *RevocationStore) IsRevoked(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	key := hashToken(token)
	if _, ok := s.local.Get(key); ok {
		return true
	}
	if s.rdb == nil {
		return false
	}
	if err := s.rdb.Get(ctx, revocationKeyPrefix+key).Err(); err != nil {
		if err != redis.Nil {
			s.logger.Warn("revocation lookup degraded to miss", zap.Error(err))
		}
		return false
	}
	s.local.SetWithTTL(key, true, 1, s.localTTL)
	s.local.Wait()
	return true
}

// Revoke marks the token rejected for ttl. A non-positive ttl (after the
// configured default, if any) means the token is already expired and the
// call is a no-op. The local write always happens; the Redis write is
// best-effort and a failure there is logged and swallowed rather than
// failing logout.
func (s *RevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) {
	if token == "" {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl <= 0 {
		s.logger.Debug("revocation skipped, token already expired")
		return
	}

	key := hashToken(token)
	s.local.SetWithTTL(key, true, 1, ttl)
	// Wait makes the entry visible to reads on this instance before the
	// logout response goes out.
	s.local.Wait()

	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, revocationKeyPrefix+key, "1", ttl).Err(); err != nil {
		s.logger.Warn("revocation redis write lost", zap.Error(err))
	}
}

// Close releases the local tier.
func (s *RevocationStore) Close() {
	s.local.Close()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

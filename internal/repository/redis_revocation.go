package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationStore keeps the revocation set in Redis.  Each revoked
// token identifier becomes a key with a TTL equal to the token's
// remaining lifetime, so expired revocations disappear on their own and
// PruneExpired has nothing to do.  Lookups are a single EXISTS and never
// block on writers.
type RedisRevocationStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisRevocationStore(client *redis.Client, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisRevocationStore{Client: client, Prefix: prefix}
}

func (s *RedisRevocationStore) key(tokenID string) string {
	return fmt.Sprintf("%s:%s", s.Prefix, tokenID)
}

// Add marks a token identifier revoked until its original expiry.  A
// token that has already expired needs no entry at all.
func (s *RedisRevocationStore) Add(ctx context.Context, tokenID string, userID uint64, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.Client.Set(ctx, s.key(tokenID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke: %w", mapErr(err))
	}
	return nil
}

// Contains reports whether the token identifier is in the revocation set.
func (s *RedisRevocationStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.Client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis revocation lookup: %w", mapErr(err))
	}
	return n > 0, nil
}

// PruneExpired is a no-op for the Redis backend; key TTLs already bound
// the set's growth.
func (s *RedisRevocationStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

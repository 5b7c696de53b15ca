package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

// RedisTokenService keeps revoked tokens as Redis keys that expire on their own.
type RedisTokenService struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisTokenService creates a new RedisTokenService.
func NewRedisTokenService(rdb *redis.Client) *RedisTokenService {
	return &RedisTokenService{rdb: rdb, now: time.Now}
}

func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedKeyPrefix + hex.EncodeToString(sum[:])
}

// RevokeToken sets a key for token that lives until expiresAt.
// An existing key with a later expiry is left alone.
func (s *RedisTokenService) RevokeToken(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	key := revokedKey(token)

	current, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if current > ttl {
		return nil
	}
	if err := s.rdb.Set(ctx, key, expiresAt.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether a key exists for token.
func (s *RedisTokenService) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeExpiredTokens is a no-op; Redis expires the keys itself.
func (s *RedisTokenService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return 0, nil
}

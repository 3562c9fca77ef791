package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "kevin:token:revoked:"

// RevocationStore tracks revoked token ids in Redis. Entries expire together
// with the token they blacklist, so the set stays bounded.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore constructs a RevocationStore.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// Revoke blacklists a token id until its expiry.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revocationKeyPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether a token id has been blacklisted.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

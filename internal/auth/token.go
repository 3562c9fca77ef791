package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the claim set carried by the token cookie.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies bearer tokens with HMAC-SHA256.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec constructs a codec. The secret must not be empty.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret must be provided")
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue creates a signed token for the given user id.
func (c *TokenCodec) Issue(userID int64) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies a token string and returns its claims. A malformed token, a
// signature mismatch, or an expired token all yield an error, never a partial
// claim set.
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kevin-learn/kevin-server/internal/authz"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	codec   *TokenCodec
	revoked *RevocationStore
}

// NewService constructs a Service.
func NewService(repo Repository, codec *TokenCodec, revoked *RevocationStore) *Service {
	return &Service{repo: repo, codec: codec, revoked: revoked}
}

// Authenticate validates mail/password credentials and issues a token.
func (s *Service) Authenticate(ctx context.Context, mail, password string) (*Identity, string, *Claims, error) {
	ident, err := s.repo.FindByMail(ctx, mail)
	if err != nil {
		return nil, "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return nil, "", nil, ErrInvalidCredentials
	}
	token, claims, err := s.codec.Issue(ident.ID)
	if err != nil {
		return nil, "", nil, err
	}
	return ident, token, claims, nil
}

// Revoke invalidates a token until it would have expired anyway.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	expiresAt := time.Now().Add(s.codec.TTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.revoked.Revoke(ctx, claims.ID, expiresAt)
}

// ResolveCaller decodes a token string and resolves the caller behind it.
// A missing or undecodable token yields httpx.ErrUnauthorized. A token whose
// user id matches no stored record yields a caller context with Exists false;
// the decision engine treats that caller like an unauthenticated one.
func (s *Service) ResolveCaller(ctx context.Context, tokenString string) (authz.Context, *Claims, error) {
	claims, err := s.codec.Parse(tokenString)
	if err != nil {
		return authz.Context{}, nil, httpx.ErrUnauthorized
	}
	if claims.ID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return authz.Context{}, nil, err
		}
		if revoked {
			return authz.Context{}, nil, httpx.ErrUnauthorized
		}
	}
	ident, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return authz.Context{UserID: claims.UserID}, claims, nil
		}
		return authz.Context{}, nil, err
	}
	return authz.Context{UserID: ident.ID, Role: ident.Role, Exists: true}, claims, nil
}

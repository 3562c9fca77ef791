package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Service handles user business logic. It owns credential hashing: raw
// secrets never reach the repository.
type Service struct {
	repo     Repository
	maxItems int
}

// NewService builds a Service. maxItems caps page sizes for Find.
func NewService(repo Repository, maxItems int) *Service {
	return &Service{repo: repo, maxItems: maxItems}
}

// MaxItems returns the configured page size cap.
func (s *Service) MaxItems() int {
	return s.maxItems
}

// Find returns users matching the filter. Out-of-range limits are clamped to
// the configured maximum; a limit of exactly zero is a valid request for an
// empty page and passes through.
func (s *Service) Find(ctx context.Context, filter Filter) ([]User, error) {
	if filter.Limit < 0 || filter.Limit > s.maxItems {
		filter.Limit = s.maxItems
	}
	return s.repo.Find(ctx, filter)
}

// Create registers a new account. The raw password is hashed here.
func (s *Service) Create(ctx context.Context, nu NewUser) (*User, error) {
	if nu.Name == "" || nu.Password == "" || nu.Mail == "" {
		return nil, fmt.Errorf("%w: name, password and mail are required", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, User{
		Name:         nu.Name,
		PasswordHash: string(hash),
		Mail:         nu.Mail,
		Role:         nu.Role,
	})
}

// Update applies a partial change and returns the affected row count. A
// supplied password is hashed before storage, same as at registration.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (int64, error) {
	if patch.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return 0, err
		}
		hashed := string(hash)
		patch.Password = &hashed
	}
	return s.repo.Update(ctx, id, patch)
}

// Delete removes a user and returns the affected row count.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	return s.repo.Delete(ctx, id)
}

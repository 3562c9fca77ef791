package exercises

import (
	"context"
	"fmt"

	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Service handles exercise business logic.
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

// Find returns exercises matching the filter. Out-of-range limits are clamped
// to the configured maximum; a limit of exactly zero selects an empty page.
func (s *Service) Find(ctx context.Context, filter Filter) ([]Exercise, error) {
	if filter.Limit < 0 || filter.Limit > s.maxItems {
		filter.Limit = s.maxItems
	}
	return s.repo.Find(ctx, filter)
}

// Get fetches a single exercise.
func (s *Service) Get(ctx context.Context, id int64) (*Exercise, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new exercise.
func (s *Service) Create(ctx context.Context, exercise Exercise) (*Exercise, error) {
	if exercise.Title == "" {
		return nil, fmt.Errorf("%w: exercise title is required", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, exercise)
}

// Update applies a partial change and returns the affected row count.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (int64, error) {
	return s.repo.Update(ctx, id, patch)
}

// Delete removes an exercise and returns the affected row count.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	return s.repo.Delete(ctx, id)
}

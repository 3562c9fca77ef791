package solutions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kevin-learn/kevin-server/internal/exercises"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// ExerciseSource provides the exercises submissions are graded against.
type ExerciseSource interface {
	Get(ctx context.Context, id int64) (*exercises.Exercise, error)
}

// Enqueuer hands a stored submission to the grading queue.
type Enqueuer interface {
	EnqueueGradeSolution(ctx context.Context, solutionID int64) error
}

// Service handles submission business logic and grading.
type Service struct {
	repo      Repository
	exercises ExerciseSource
	queue     Enqueuer
	maxItems  int
}

// NewService builds a Service. maxItems caps page sizes for Find.
func NewService(repo Repository, exercises ExerciseSource, queue Enqueuer, maxItems int) *Service {
	return &Service{repo: repo, exercises: exercises, queue: queue, maxItems: maxItems}
}

// MaxItems returns the configured page size cap.
func (s *Service) MaxItems() int {
	return s.maxItems
}

// Find returns solutions matching the filter. Out-of-range limits are clamped
// to the configured maximum; a limit of exactly zero selects an empty page.
func (s *Service) Find(ctx context.Context, filter Filter) ([]Solution, error) {
	if filter.Limit < 0 || filter.Limit > s.maxItems {
		filter.Limit = s.maxItems
	}
	return s.repo.Find(ctx, filter)
}

// Submit stores a pending submission for the given user and queues it for
// grading.
func (s *Service) Submit(ctx context.Context, userID, exerciseID int64, content string, duration time.Duration) (*Solution, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: solution content is required", httpx.ErrValidation)
	}
	if _, err := s.exercises.Get(ctx, exerciseID); err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("%w: exercise %d does not exist", httpx.ErrValidation, exerciseID)
		}
		return nil, err
	}

	created, err := s.repo.Create(ctx, Solution{
		UserID:     userID,
		ExerciseID: exerciseID,
		Submitted:  time.Now().UTC(),
		Duration:   duration,
		Pending:    true,
		Content:    content,
	})
	if err != nil {
		return nil, err
	}
	if err := s.queue.EnqueueGradeSolution(ctx, created.ID); err != nil {
		return nil, err
	}
	return created, nil
}

// Grade compares a pending submission against the exercise's stored solution
// and records the outcome. Already-graded submissions are left alone, so the
// task can be retried safely.
func (s *Service) Grade(ctx context.Context, solutionID int64) error {
	solution, err := s.repo.Get(ctx, solutionID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil
		}
		return err
	}
	if !solution.Pending {
		return nil
	}

	correct := false
	exercise, err := s.exercises.Get(ctx, solution.ExerciseID)
	if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return err
	}
	if exercise != nil {
		correct = strings.TrimSpace(solution.Content) == strings.TrimSpace(exercise.Solution)
	}

	_, err = s.repo.SetResult(ctx, solutionID, correct)
	return err
}

// Delete removes a solution and returns the affected row count.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	return s.repo.Delete(ctx, id)
}

// Get fetches a single solution.
func (s *Service) Get(ctx context.Context, id int64) (*Solution, error) {
	return s.repo.Get(ctx, id)
}

package solutions

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin-learn/kevin-server/internal/exercises"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

type mockRepository struct {
	solutions  map[int64]*Solution
	nextID     int64
	lastFilter Filter
}

func newMockRepository() *mockRepository {
	return &mockRepository{solutions: make(map[int64]*Solution), nextID: 1}
}

func (m *mockRepository) Find(ctx context.Context, filter Filter) ([]Solution, error) {
	m.lastFilter = filter
	ids := make([]int64, 0, len(m.solutions))
	for id := range m.solutions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	matched := []Solution{}
	for _, id := range ids {
		s := m.solutions[id]
		if filter.ID > 0 && s.ID != filter.ID {
			continue
		}
		if filter.UserID > 0 && s.UserID != filter.UserID {
			continue
		}
		if filter.ExerciseID > 0 && s.ExerciseID != filter.ExerciseID {
			continue
		}
		matched = append(matched, *s)
	}
	if filter.ID > 0 {
		return matched, nil
	}
	if filter.Offset >= len(matched) {
		return []Solution{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Solution, error) {
	s, ok := m.solutions[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockRepository) Create(ctx context.Context, solution Solution) (*Solution, error) {
	solution.ID = m.nextID
	m.nextID++
	m.solutions[solution.ID] = &solution
	return &solution, nil
}

func (m *mockRepository) SetResult(ctx context.Context, id int64, correct bool) (int64, error) {
	s, ok := m.solutions[id]
	if !ok {
		return 0, nil
	}
	s.Correct = correct
	s.Pending = false
	return 1, nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) (int64, error) {
	if _, ok := m.solutions[id]; !ok {
		return 0, nil
	}
	delete(m.solutions, id)
	return 1, nil
}

type mockExercises struct {
	exercises map[int64]*exercises.Exercise
}

func (m *mockExercises) Get(ctx context.Context, id int64) (*exercises.Exercise, error) {
	e, ok := m.exercises[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return e, nil
}

type recordingQueue struct {
	enqueued []int64
	fail     error
}

func (q *recordingQueue) EnqueueGradeSolution(ctx context.Context, solutionID int64) error {
	if q.fail != nil {
		return q.fail
	}
	q.enqueued = append(q.enqueued, solutionID)
	return nil
}

type fixture struct {
	repo  *mockRepository
	queue *recordingQueue
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMockRepository()
	queue := &recordingQueue{}
	source := &mockExercises{exercises: map[int64]*exercises.Exercise{
		1: {ID: 1, Title: "loops", Solution: "for i in range(3): pass", Language: exercises.LanguagePython},
	}}
	return &fixture{repo: repo, queue: queue, svc: NewService(repo, source, queue, 20)}
}

func TestSubmitStoresPendingAndEnqueues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, 7, 1, "for i in range(3): pass", 90*time.Second)
	require.NoError(t, err)
	assert.True(t, created.Pending)
	assert.False(t, created.Correct)
	assert.Equal(t, int64(7), created.UserID)
	assert.Equal(t, []int64{created.ID}, f.queue.enqueued)
}

func TestSubmitMissingContent(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), 7, 1, "", 0)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Empty(t, f.queue.enqueued)
}

func TestSubmitUnknownExercise(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), 7, 42, "whatever", 0)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Empty(t, f.queue.enqueued)
}

func TestGradeCorrectSolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, 7, 1, "for i in range(3): pass", 0)
	require.NoError(t, err)

	require.NoError(t, f.svc.Grade(ctx, created.ID))

	graded := f.repo.solutions[created.ID]
	assert.False(t, graded.Pending)
	assert.True(t, graded.Correct)
}

func TestGradeIgnoresSurroundingWhitespace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, 7, 1, "  for i in range(3): pass\n", 0)
	require.NoError(t, err)

	require.NoError(t, f.svc.Grade(ctx, created.ID))
	assert.True(t, f.repo.solutions[created.ID].Correct)
}

func TestGradeWrongSolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, 7, 1, "while True: pass", 0)
	require.NoError(t, err)

	require.NoError(t, f.svc.Grade(ctx, created.ID))

	graded := f.repo.solutions[created.ID]
	assert.False(t, graded.Pending)
	assert.False(t, graded.Correct)
}

func TestGradeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, 7, 1, "for i in range(3): pass", 0)
	require.NoError(t, err)
	require.NoError(t, f.svc.Grade(ctx, created.ID))

	// Flip the stored result and grade again: a settled submission stays
	// settled even if the task is redelivered.
	f.repo.solutions[created.ID].Correct = false
	require.NoError(t, f.svc.Grade(ctx, created.ID))
	assert.False(t, f.repo.solutions[created.ID].Correct)
}

func TestGradeMissingSolution(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.svc.Grade(context.Background(), 42))
}

func TestGradeDeletedExercise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, 7, 1, "for i in range(3): pass", 0)
	require.NoError(t, err)

	// The exercise vanished between submission and grading.
	f.svc.exercises.(*mockExercises).exercises = map[int64]*exercises.Exercise{}

	require.NoError(t, f.svc.Grade(ctx, created.ID))
	graded := f.repo.solutions[created.ID]
	assert.False(t, graded.Pending)
	assert.False(t, graded.Correct)
}

func TestFindClampsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := f.svc.Submit(ctx, 7, 1, "attempt", time.Second)
		require.NoError(t, err)
	}

	svc := NewService(f.repo, f.svc.exercises, f.queue, 5)
	found, err := svc.Find(ctx, Filter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, found, 5)

	found, err = svc.Find(ctx, Filter{Limit: -1})
	require.NoError(t, err)
	assert.Len(t, found, 5)
}

func TestFindZeroLimitPassesThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, 7, 1, "attempt", time.Second)
	require.NoError(t, err)

	found, err := f.svc.Find(ctx, Filter{Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Zero(t, f.repo.lastFilter.Limit)
}

func TestFindByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, 7, 1, "mine", 0)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, 8, 1, "theirs", 0)
	require.NoError(t, err)

	found, err := f.svc.Find(ctx, Filter{UserID: 7, Limit: 20})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "mine", found[0].Content)
}

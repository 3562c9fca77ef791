package solutions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Repository defines data access methods for solutions.
type Repository interface {
	Find(ctx context.Context, filter Filter) ([]Solution, error)
	Get(ctx context.Context, id int64) (*Solution, error)
	Create(ctx context.Context, solution Solution) (*Solution, error)
	SetResult(ctx context.Context, id int64, correct bool) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const solutionColumns = `solution_id, solution_user, solution_exercise, solution_date, solution_duration, solution_correct, solution_pending, solution_content`

func scanSolution(row pgx.Row) (*Solution, error) {
	var s Solution
	var durationSeconds int64
	if err := row.Scan(&s.ID, &s.UserID, &s.ExerciseID, &s.Submitted, &durationSeconds, &s.Correct, &s.Pending, &s.Content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	s.Duration = time.Duration(durationSeconds) * time.Second
	return &s, nil
}

// Find returns solutions matching the filter, bounded by Filter.Limit.
func (r *PGRepository) Find(ctx context.Context, filter Filter) ([]Solution, error) {
	query := `SELECT ` + solutionColumns + ` FROM solutions WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.ID > 0 {
		argCount++
		query += ` AND solution_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ID)
	}
	if filter.UserID > 0 {
		argCount++
		query += ` AND solution_user = $` + strconv.Itoa(argCount)
		args = append(args, filter.UserID)
	}
	if filter.ExerciseID > 0 {
		argCount++
		query += ` AND solution_exercise = $` + strconv.Itoa(argCount)
		args = append(args, filter.ExerciseID)
	}

	query += ` ORDER BY solution_id`
	if filter.ID == 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Solution
	for rows.Next() {
		s, err := scanSolution(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// Get fetches a single solution by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Solution, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+solutionColumns+` FROM solutions WHERE solution_id = $1`, id)
	return scanSolution(row)
}

// Create stores a new pending submission.
func (r *PGRepository) Create(ctx context.Context, solution Solution) (*Solution, error) {
	const query = `
		INSERT INTO solutions (solution_user, solution_exercise, solution_date, solution_duration, solution_correct, solution_pending, solution_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING solution_id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		solution.UserID, solution.ExerciseID, solution.Submitted,
		int64(solution.Duration/time.Second), solution.Correct, solution.Pending, solution.Content,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	created := solution
	created.ID = id
	return &created, nil
}

// SetResult records the grading outcome and clears the pending flag.
func (r *PGRepository) SetResult(ctx context.Context, id int64, correct bool) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE solutions SET solution_correct = $1, solution_pending = FALSE WHERE solution_id = $2`,
		correct, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a solution and returns the number of affected rows.
func (r *PGRepository) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM solutions WHERE solution_id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)

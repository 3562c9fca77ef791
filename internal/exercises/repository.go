package exercises

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevin-learn/kevin-server/internal/platform/db"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// ErrTitleTaken is returned by Create when the title is already in use.
var ErrTitleTaken = fmt.Errorf("%w: exercise title already registered", httpx.ErrConflict)

// Repository defines data access methods for exercises.
type Repository interface {
	Find(ctx context.Context, filter Filter) ([]Exercise, error)
	Get(ctx context.Context, id int64) (*Exercise, error)
	Create(ctx context.Context, exercise Exercise) (*Exercise, error)
	Update(ctx context.Context, id int64, patch Patch) (int64, error)
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

const exerciseColumns = `exercise_id, exercise_title, exercise_description, exercise_type, exercise_content, exercise_solution, exercise_language`

// Find returns exercises matching the filter, bounded by Filter.Limit.
func (r *PGRepository) Find(ctx context.Context, filter Filter) ([]Exercise, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.ID > 0 {
		argCount++
		query += ` AND exercise_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ID)
	}
	if filter.Title != "" {
		argCount++
		query += ` AND exercise_title = $` + strconv.Itoa(argCount)
		args = append(args, filter.Title)
	}
	if filter.Description != "" {
		argCount++
		query += ` AND exercise_description = $` + strconv.Itoa(argCount)
		args = append(args, filter.Description)
	}
	if filter.Type != nil {
		argCount++
		query += ` AND exercise_type = $` + strconv.Itoa(argCount)
		args = append(args, int(*filter.Type))
	}
	if filter.Language != nil {
		argCount++
		query += ` AND exercise_language = $` + strconv.Itoa(argCount)
		args = append(args, int(*filter.Language))
	}

	query += ` ORDER BY exercise_id`
	if filter.ID == 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			argCount++
			query += ` OFFSET $` + strconv.Itoa(argCount)
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Exercise
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Type, &e.Content, &e.Solution, &e.Language); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Get fetches a single exercise by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Exercise, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE exercise_id = $1`, id)
	var e Exercise
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Type, &e.Content, &e.Solution, &e.Language); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts an exercise unless the title is already taken. Check and
// insert are a single statement backed by the unique index on the title.
func (r *PGRepository) Create(ctx context.Context, exercise Exercise) (*Exercise, error) {
	const query = `
		INSERT INTO exercises (exercise_title, exercise_description, exercise_type, exercise_content, exercise_solution, exercise_language)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (exercise_title) DO NOTHING
		RETURNING exercise_id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		exercise.Title, exercise.Description, int(exercise.Type),
		exercise.Content, exercise.Solution, int(exercise.Language),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTitleTaken
		}
		return nil, err
	}
	created := exercise
	created.ID = id
	return &created, nil
}

// Update applies the patch and returns the number of affected rows. An empty
// patch degenerates to an existence check so the count contract still holds.
func (r *PGRepository) Update(ctx context.Context, id int64, patch Patch) (int64, error) {
	if patch.IsEmpty() {
		var n int64
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exercises WHERE exercise_id = $1`, id).Scan(&n); err != nil {
			return 0, err
		}
		return n, nil
	}

	query := `UPDATE exercises SET`
	args := []any{}
	argCount := 0
	appendSet := func(column string, value any) {
		argCount++
		if argCount > 1 {
			query += `,`
		}
		query += ` ` + column + ` = $` + strconv.Itoa(argCount)
		args = append(args, value)
	}

	if patch.Title != nil {
		appendSet("exercise_title", *patch.Title)
	}
	if patch.Description != nil {
		appendSet("exercise_description", *patch.Description)
	}
	if patch.Type != nil {
		appendSet("exercise_type", int(*patch.Type))
	}
	if patch.Content != nil {
		appendSet("exercise_content", *patch.Content)
	}
	if patch.Solution != nil {
		appendSet("exercise_solution", *patch.Solution)
	}
	if patch.Language != nil {
		appendSet("exercise_language", int(*patch.Language))
	}

	argCount++
	query += ` WHERE exercise_id = $` + strconv.Itoa(argCount)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrTitleTaken
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes an exercise and returns the number of affected rows.
func (r *PGRepository) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exercises WHERE exercise_id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)

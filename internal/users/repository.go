package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevin-learn/kevin-server/internal/platform/db"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Conflict reasons surfaced by Create and Update.
var (
	ErrNameTaken = fmt.Errorf("%w: user name already registered", httpx.ErrConflict)
	ErrMailTaken = fmt.Errorf("%w: user mail already registered", httpx.ErrConflict)
)

// Repository defines data access methods for users.
type Repository interface {
	Find(ctx context.Context, filter Filter) ([]User, error)
	Create(ctx context.Context, user User) (*User, error)
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

// Find returns users matching the filter, bounded by Filter.Limit.
func (r *PGRepository) Find(ctx context.Context, filter Filter) ([]User, error) {
	query := `SELECT user_id, user_name, user_pass, user_mail, user_role FROM users WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.ID > 0 {
		argCount++
		query += ` AND user_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ID)
	}
	if filter.Name != "" {
		argCount++
		query += ` AND user_name = $` + strconv.Itoa(argCount)
		args = append(args, filter.Name)
	}
	if filter.Mail != "" {
		argCount++
		query += ` AND user_mail = $` + strconv.Itoa(argCount)
		args = append(args, filter.Mail)
	}
	if filter.Role != nil {
		argCount++
		query += ` AND user_role = $` + strconv.Itoa(argCount)
		args = append(args, int(*filter.Role))
	}

	query += ` ORDER BY user_id`
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

	var result []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Mail, &u.Role); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// Create inserts a user unless one with the same name already exists. The
// existence check and the insert are a single statement, so two racing
// registrations cannot both succeed. The unique indexes on user_name and
// user_mail are reported as conflicts as well.
func (r *PGRepository) Create(ctx context.Context, user User) (*User, error) {
	const query = `
		INSERT INTO users (user_name, user_pass, user_mail, user_role)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (SELECT 1 FROM users WHERE user_name = $1)
		RETURNING user_id`

	var id int64
	err := r.pool.QueryRow(ctx, query, user.Name, user.PasswordHash, user.Mail, int(user.Role)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNameTaken
		}
		if db.IsUniqueViolation(err) {
			return nil, uniqueViolationError(err)
		}
		return nil, err
	}
	created := user
	created.ID = id
	return &created, nil
}

// uniqueViolationError maps a unique violation to the conflicting field. A
// racing registration can slip past the WHERE NOT EXISTS guard and trip the
// user_name index instead, so the constraint name decides which conflict is
// reported.
func uniqueViolationError(err error) error {
	if strings.Contains(db.ViolatedConstraint(err), "user_name") {
		return ErrNameTaken
	}
	return ErrMailTaken
}

// Update applies the patch and returns the number of affected rows. An empty
// patch degenerates to an existence check so the count contract still holds.
func (r *PGRepository) Update(ctx context.Context, id int64, patch Patch) (int64, error) {
	if patch.IsEmpty() {
		var n int64
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE user_id = $1`, id).Scan(&n); err != nil {
			return 0, err
		}
		return n, nil
	}

	query := `UPDATE users SET`
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

	if patch.Name != nil {
		appendSet("user_name", *patch.Name)
	}
	if patch.Password != nil {
		appendSet("user_pass", *patch.Password)
	}
	if patch.Mail != nil {
		appendSet("user_mail", *patch.Mail)
	}
	if patch.Role != nil {
		appendSet("user_role", int(*patch.Role))
	}

	argCount++
	query += ` WHERE user_id = $` + strconv.Itoa(argCount)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, uniqueViolationError(err)
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a user and returns the number of affected rows.
func (r *PGRepository) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)

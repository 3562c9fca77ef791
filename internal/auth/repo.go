package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByMail(ctx context.Context, mail string) (*Identity, error)
	FindByID(ctx context.Context, id int64) (*Identity, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const identityColumns = `user_id, user_name, user_mail, user_pass, user_role`

// FindByMail fetches the identity registered under a mail address.
func (r *PGRepository) FindByMail(ctx context.Context, mail string) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE user_mail = $1`, mail)
	return scanIdentity(row)
}

// FindByID fetches the identity behind a user id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE user_id = $1`, id)
	return scanIdentity(row)
}

func scanIdentity(row pgx.Row) (*Identity, error) {
	var ident Identity
	if err := row.Scan(&ident.ID, &ident.Name, &ident.Mail, &ident.PasswordHash, &ident.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &ident, nil
}

var _ Repository = (*PGRepository)(nil)

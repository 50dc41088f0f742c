package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distriplus/backend/internal/domain/user"
)

const (
	userColumns = `id, email, name, lastname, password_hash, role, refresh_token,
		created_at, updated_at`

	getUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	createUserSQL = `INSERT INTO users (id, email, name, lastname, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// Credential columns stay out of listings.
	listUsersSQL = `SELECT id, email, name, lastname, role, created_at, updated_at
		FROM users ORDER BY email`

	updatePasswordSQL = `UPDATE users SET password_hash = $2, updated_at = now()
		WHERE email = $1`

	setRefreshTokenSQL = `UPDATE users SET refresh_token = $2, updated_at = now()
		WHERE email = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns a single user by its identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns a single user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

func (r *UserRepository) getOne(ctx context.Context, sql, key string) (*user.User, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, sql, key)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", key, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", key, err)
	}
	return &u, nil
}

// Create persists a new user account.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := dbFrom(ctx, r.pool).Exec(ctx, createUserSQL,
		u.ID, u.Email, u.Name, u.Lastname, u.PasswordHash, string(u.Role),
	)
	if err != nil {
		if uniqueViolation(err, "users_email_key") {
			return &user.DuplicateEmailError{Email: u.Email}
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// List returns all users without credential fields.
func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		var u user.User
		err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Lastname, (*string)(&u.Role),
			&u.CreatedAt, &u.UpdatedAt)
		return u, err
	})
}

// UpdatePassword replaces the stored password hash for the account.
func (r *UserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	tag, err := dbFrom(ctx, r.pool).Exec(ctx, updatePasswordSQL, email, passwordHash)
	if err != nil {
		return fmt.Errorf("updating password for %q: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SetRefreshToken stores or clears the account's active refresh token.
func (r *UserRepository) SetRefreshToken(ctx context.Context, email, token string) error {
	_, err := dbFrom(ctx, r.pool).Exec(ctx, setRefreshTokenSQL, email, token)
	if err != nil {
		return fmt.Errorf("setting refresh token for %q: %w", email, err)
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Lastname, &u.PasswordHash, (*string)(&u.Role),
		&u.RefreshToken, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// Package user manages operator accounts and their credentials.
package user

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// DuplicateEmailError indicates an attempt to register a second account with
// the same email.
type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("user with email %s already exists", e.Email)
}

// Role enumerates the account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an operator account. PasswordHash is a bcrypt digest; RefreshToken
// holds the currently valid refresh token, empty when signed out.
type User struct {
	ID           string
	Email        string
	Name         string
	Lastname     string
	PasswordHash string
	Role         Role
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines persistence operations for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	// List returns all users, credential fields cleared.
	List(ctx context.Context) ([]User, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	// SetRefreshToken stores the active refresh token for the account; an
	// empty token signs the account out.
	SetRefreshToken(ctx context.Context, email, token string) error
}

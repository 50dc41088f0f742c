package user

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// CreateRequest holds the validated input for registering an account.
type CreateRequest struct {
	Email    string
	Password string
	Name     string
	Lastname string
	Role     Role
}

// Service exposes account management operations.
type Service struct {
	users Repository
}

// NewService creates a user Service.
func NewService(users Repository) *Service {
	return &Service{users: users}
}

// Create registers a new account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*User, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		Lastname:     req.Lastname,
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// List returns all accounts without credential fields.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// UpdatePassword replaces an account's password with a fresh bcrypt hash.
func (s *Service) UpdatePassword(ctx context.Context, email, password string) error {
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	return s.users.UpdatePassword(ctx, email, string(hash))
}

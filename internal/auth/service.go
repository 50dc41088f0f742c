package auth

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/distriplus/backend/internal/domain/user"
)

// ErrInvalidCredentials is returned when the email or password does not
// match an account. The two cases are indistinguishable on purpose.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Users is the narrow view of the user repository auth needs.
type Users interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	SetRefreshToken(ctx context.Context, email, token string) error
}

// Service implements the session lifecycle: sign-in, refresh rotation, and
// sign-out.
type Service struct {
	users  Users
	tokens *TokenManager
}

// NewService creates an auth Service.
func NewService(users Users, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens}
}

// SignIn verifies the credentials and issues a fresh token pair. The refresh
// token is stored on the account so a later refresh or sign-out can match it.
func (s *Service) SignIn(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issue(ctx, u)
}

// Refresh rotates the token pair. The presented token must verify AND match
// the one stored on the account, so a stolen token dies as soon as the
// legitimate session refreshes or signs out.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if u.RefreshToken == "" || u.RefreshToken != refreshToken {
		return TokenPair{}, ErrInvalidToken
	}
	return s.issue(ctx, u)
}

// SignOut revokes the account's refresh token. Outstanding access tokens
// stay valid until they expire.
func (s *Service) SignOut(ctx context.Context, email string) error {
	return s.users.SetRefreshToken(ctx, email, "")
}

// VerifyAccess validates a bearer token and returns its claims.
func (s *Service) VerifyAccess(token string) (*Claims, error) {
	return s.tokens.VerifyAccess(token)
}

func (s *Service) issue(ctx context.Context, u *user.User) (TokenPair, error) {
	pair, err := s.tokens.IssuePair(u.ID, u.Email, string(u.Role))
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.SetRefreshToken(ctx, u.Email, pair.RefreshToken); err != nil {
		return TokenPair{}, errors.Wrap(err, "store refresh token")
	}
	return pair, nil
}

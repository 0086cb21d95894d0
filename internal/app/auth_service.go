package app

import (
	"context"
	"fmt"

	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/user"
	"github.com/girderhq/api/pkg/jwt"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/password"
)

// AuthService handles authentication: credential checks and token issuance.
// Tokens carry no tenant claim; the active tenant is supplied per request via
// the X-Tenant-ID header and resolved by the gate.
type AuthService struct {
	userRepo user.Repository
	hasher   *password.Hasher
	tokens   *jwt.Generator
	logger   *logger.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo user.Repository, hasher *password.Hasher, tokens *jwt.Generator, log *logger.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		logger:   log.With("service", "auth"),
	}
}

// LoginInput represents login credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login verifies credentials and issues a token pair. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*user.User, *TokenPair, error) {
	u, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil, shared.ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if !u.IsActive() {
		return nil, nil, shared.ErrUnauthorized
	}

	if err := s.hasher.Verify(input.Password, u.PasswordHash()); err != nil {
		s.logger.Warn("login failed", "email", input.Email)
		return nil, nil, shared.ErrUnauthorized
	}

	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user logged in", "user_id", u.ID().String())
	return u, pair, nil
}

// Refresh validates a refresh token and issues a fresh pair. The user is
// reloaded so a deactivated account cannot refresh its way back in.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*user.User, *TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, shared.ErrUnauthorized
	}

	userID, err := shared.IDFromString(claims.UserID)
	if err != nil {
		return nil, nil, shared.ErrUnauthorized
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil, shared.ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive() {
		return nil, nil, shared.ErrUnauthorized
	}

	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, nil, err
	}

	return u, pair, nil
}

// Authenticate resolves an access token to its user. Used by the auth
// middleware on every request.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*user.User, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, shared.ErrUnauthorized
	}

	userID, err := shared.IDFromString(claims.UserID)
	if err != nil {
		return nil, shared.ErrUnauthorized
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive() {
		return nil, shared.ErrUnauthorized
	}

	return u, nil
}

func (s *AuthService) issueTokens(u *user.User) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(u.ID().String(), u.Email(), u.Name())
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(u.ID().String(), u.Email())
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

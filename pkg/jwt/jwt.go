// Package jwt provides JWT token generation and validation.
//
// Tokens carry identity only. The active tenant is never embedded in a
// token: it is supplied per request via the X-Tenant-ID header and validated
// against memberships by the authorization gate, so tenant access changes do
// not require token reissue.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidTokenType is returned when the token type does not match the
	// validation entrypoint (e.g. a refresh token presented as access).
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrEmptyUserID is returned when user_id is empty.
	ErrEmptyUserID = errors.New("user_id cannot be empty")
)

// TokenType represents the type of JWT token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived access token.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived refresh token.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims represents the JWT claims structure.
type Claims struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	TokenType TokenType `json:"token_type,omitempty"`

	jwt.RegisteredClaims
}

// Generator creates and validates tokens with a shared HMAC secret.
type Generator struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewGenerator creates a Generator.
func NewGenerator(secret, issuer string, accessTTL, refreshTTL time.Duration) *Generator {
	return &Generator{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// GenerateAccessToken creates a short-lived access token.
func (g *Generator) GenerateAccessToken(userID, email, name string) (string, error) {
	return g.generate(userID, email, name, TokenTypeAccess, g.accessTTL)
}

// GenerateRefreshToken creates a long-lived refresh token.
func (g *Generator) GenerateRefreshToken(userID, email string) (string, error) {
	return g.generate(userID, email, "", TokenTypeRefresh, g.refreshTTL)
}

func (g *Generator) generate(userID, email, name string, tokenType TokenType, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now().UTC()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		Name:      name,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken validates an access token and returns its claims.
func (g *Generator) ValidateAccessToken(tokenString string) (*Claims, error) {
	return g.validate(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken validates a refresh token and returns its claims.
func (g *Generator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return g.validate(tokenString, TokenTypeRefresh)
}

func (g *Generator) validate(tokenString string, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}
		return g.secret, nil
	},
		jwt.WithIssuer(g.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expected {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator() *Generator {
	return NewGenerator("test-secret-at-least-32-characters!!", "girder-test", 15*time.Minute, 7*24*time.Hour)
}

func TestGenerator_AccessTokenRoundTrip(t *testing.T) {
	g := newTestGenerator()

	token, err := g.GenerateAccessToken("user-123", "pm@example.com", "Project Manager")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := g.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "pm@example.com", claims.Email)
	assert.Equal(t, "Project Manager", claims.Name)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, "girder-test", claims.Issuer)
}

func TestGenerator_RefreshTokenRoundTrip(t *testing.T) {
	g := newTestGenerator()

	token, err := g.GenerateRefreshToken("user-123", "pm@example.com")
	require.NoError(t, err)

	claims, err := g.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestGenerator_TokenTypeConfusionRejected(t *testing.T) {
	g := newTestGenerator()

	refresh, err := g.GenerateRefreshToken("user-123", "pm@example.com")
	require.NoError(t, err)
	access, err := g.GenerateAccessToken("user-123", "pm@example.com", "")
	require.NoError(t, err)

	// A refresh token never authenticates a request, and an access token
	// never mints new tokens.
	_, err = g.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
	_, err = g.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestGenerator_ExpiredToken(t *testing.T) {
	g := NewGenerator("test-secret-at-least-32-characters!!", "girder-test", -time.Minute, -time.Minute)

	token, err := g.GenerateAccessToken("user-123", "pm@example.com", "")
	require.NoError(t, err)

	_, err = g.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestGenerator_WrongSecret(t *testing.T) {
	g := newTestGenerator()
	other := NewGenerator("a-completely-different-secret-value!", "girder-test", 15*time.Minute, time.Hour)

	token, err := g.GenerateAccessToken("user-123", "pm@example.com", "")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerator_WrongIssuer(t *testing.T) {
	g := newTestGenerator()
	other := NewGenerator("test-secret-at-least-32-characters!!", "someone-else", 15*time.Minute, time.Hour)

	token, err := other.GenerateAccessToken("user-123", "pm@example.com", "")
	require.NoError(t, err)

	_, err = g.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerator_EmptyUserID(t *testing.T) {
	g := newTestGenerator()
	_, err := g.GenerateAccessToken("", "pm@example.com", "")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestGenerator_GarbageToken(t *testing.T) {
	g := newTestGenerator()
	_, err := g.ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerator_NoTenantClaimInToken(t *testing.T) {
	g := newTestGenerator()

	token, err := g.GenerateAccessToken("user-123", "pm@example.com", "PM")
	require.NoError(t, err)

	// The active tenant travels in a request header, never inside the
	// token, so switching tenants needs no reissue.
	claims, err := g.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
}

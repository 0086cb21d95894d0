package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/girderhq/api/pkg/domain/shared"
	"github.com/girderhq/api/pkg/domain/user"
	"github.com/girderhq/api/pkg/jwt"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/password"
)

type memUserRepo struct {
	users map[shared.ID]*user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[shared.ID]*user.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.users[u.ID()] = u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id shared.ID) (*user.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email() == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memUserRepo) Update(_ context.Context, u *user.User) error {
	r.users[u.ID()] = u
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id shared.ID) error {
	delete(r.users, id)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *memUserRepo, *user.User) {
	t.Helper()

	repo := newMemUserRepo()
	hasher := password.New(password.WithCost(bcrypt.MinCost))
	tokens := jwt.NewGenerator("test-secret-at-least-32-characters!!", "girder-test", 15*time.Minute, time.Hour)
	svc := NewAuthService(repo, hasher, tokens, logger.NewDefault())

	hash, err := hasher.Hash("Sup3rSecret")
	require.NoError(t, err)
	u, err := user.New("pm@example.com", "Project Manager", hash)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), u))

	return svc, repo, u
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	svc, _, u := newAuthFixture(t)

	t.Run("valid credentials issue a token pair", func(t *testing.T) {
		got, pair, err := svc.Login(ctx, LoginInput{Email: "pm@example.com", Password: "Sup3rSecret"})
		require.NoError(t, err)
		assert.Equal(t, u.ID(), got.ID())
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, _, err := svc.Login(ctx, LoginInput{Email: "pm@example.com", Password: "WrongPass1"})
		assert.ErrorIs(t, err, shared.ErrUnauthorized)

		_, _, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "Sup3rSecret"})
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("deactivated account cannot log in", func(t *testing.T) {
		svc, repo, u := newAuthFixture(t)
		u.Deactivate()
		require.NoError(t, repo.Update(ctx, u))

		_, _, err := svc.Login(ctx, LoginInput{Email: "pm@example.com", Password: "Sup3rSecret"})
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc, repo, u := newAuthFixture(t)

	_, pair, err := svc.Login(ctx, LoginInput{Email: "pm@example.com", Password: "Sup3rSecret"})
	require.NoError(t, err)

	t.Run("access token resolves to its user", func(t *testing.T) {
		got, err := svc.Authenticate(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID(), got.ID())
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("deactivation revokes live tokens", func(t *testing.T) {
		u.Deactivate()
		require.NoError(t, repo.Update(ctx, u))

		_, err := svc.Authenticate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	svc, repo, u := newAuthFixture(t)

	_, pair, err := svc.Login(ctx, LoginInput{Email: "pm@example.com", Password: "Sup3rSecret"})
	require.NoError(t, err)

	t.Run("refresh token mints a new pair", func(t *testing.T) {
		got, fresh, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID(), got.ID())
		assert.NotEmpty(t, fresh.AccessToken)
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		_, _, err := svc.Refresh(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("deactivated account cannot refresh back in", func(t *testing.T) {
		u.Deactivate()
		require.NoError(t, repo.Update(ctx, u))

		_, _, err := svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})
}

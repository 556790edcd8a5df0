package fakeuserrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-embed-auth/users/repofake"
)

func TestFakeUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	u := &users.User{Email: "Jane@Example.com", Username: "jane", Roles: []users.RoleType{users.RoleEditor}}
	require.NoError(t, repo.Upsert(ctx, u))
	require.NotEmpty(t, u.ID)

	t.Run("lookup by id and email", func(t *testing.T) {
		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "jane", got.Username)

		got, err = repo.GetByEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("missing user is nil without error", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "nope")
		require.NoError(t, err)
		require.Nil(t, got)

		roles, err := repo.RolesFor(ctx, "nope")
		require.NoError(t, err)
		require.Empty(t, roles)
	})

	t.Run("returned users are copies", func(t *testing.T) {
		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		got.Roles[0] = users.RoleAdministrator

		roles, err := repo.RolesFor(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, []users.RoleType{users.RoleEditor}, roles)
	})

	t.Run("set blocked", func(t *testing.T) {
		require.NoError(t, repo.SetBlocked(ctx, "jane@example.com", true))
		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.Blocked)

		require.ErrorIs(t, repo.SetBlocked(ctx, "ghost@example.com", true), apperrors.ErrUserNotFound)
	})

	t.Run("injected failure is a store fault", func(t *testing.T) {
		repo.FailWith(errors.New("connection refused"))
		defer repo.FailWith(nil)

		_, err := repo.GetByID(ctx, u.ID)
		require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	})
}

// Package repotest holds behaviour every paramsession.Repo must share. Each
// backend's tests call Run with a constructor for an empty repository.
package repotest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/paramsession"
)

func Run(t *testing.T, newRepo func(t *testing.T) paramsession.Repo) {
	ctx := context.Background()

	create := func(t *testing.T, repo paramsession.Repo, kind paramsession.Kind, owner string) *paramsession.Record {
		t.Helper()
		rec, err := paramsession.New(kind, owner)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, rec))
		return rec
	}

	t.Run("create assigns an id and find returns the record", func(t *testing.T) {
		repo := newRepo(t)
		rec := create(t, repo, paramsession.KindIframeSession, "user-1")
		require.Positive(t, rec.ID)

		found, err := repo.FindByPublicID(ctx, paramsession.KindIframeSession, rec.PublicID)
		require.NoError(t, err)
		require.NotNil(t, found)
		require.Equal(t, rec.ID, found.ID)
		require.Equal(t, rec.Secret, found.Secret)
		require.Equal(t, "user-1", found.OwnerID)
		require.Equal(t, paramsession.KindIframeSession, found.Kind)
	})

	t.Run("ownerless record round trips", func(t *testing.T) {
		repo := newRepo(t)
		rec := create(t, repo, paramsession.KindJourney, "")

		found, err := repo.FindByPublicID(ctx, paramsession.KindJourney, rec.PublicID)
		require.NoError(t, err)
		require.False(t, found.HasOwner())
	})

	t.Run("missing record is not an error", func(t *testing.T) {
		repo := newRepo(t)
		found, err := repo.FindByPublicID(ctx, paramsession.KindIframeSession, "does-not-exist")
		require.NoError(t, err)
		require.Nil(t, found)
	})

	t.Run("kinds are isolated", func(t *testing.T) {
		repo := newRepo(t)
		rec := create(t, repo, paramsession.KindJourney, "user-1")

		found, err := repo.FindByPublicID(ctx, paramsession.KindIframeSession, rec.PublicID)
		require.NoError(t, err)
		require.Nil(t, found)

		_, err = repo.UpdateData(ctx, paramsession.KindIframeSession, rec.PublicID, map[string]any{"x": "y"})
		require.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("duplicate public id is rejected", func(t *testing.T) {
		repo := newRepo(t)
		rec := create(t, repo, paramsession.KindIframeSession, "user-1")
		require.ErrorIs(t, repo.Create(ctx, rec.Clone()), paramsession.ErrDuplicatePublicID)
	})

	t.Run("update data replaces the payload only", func(t *testing.T) {
		repo := newRepo(t)
		rec := create(t, repo, paramsession.KindIframeSession, "user-1")

		updated, err := repo.UpdateData(ctx, paramsession.KindIframeSession, rec.PublicID, map[string]any{"step": "two"})
		require.NoError(t, err)
		require.Equal(t, rec.Secret, updated.Secret)
		require.Equal(t, rec.OwnerID, updated.OwnerID)
		require.Equal(t, "two", updated.Data["step"])

		found, err := repo.FindByPublicID(ctx, paramsession.KindIframeSession, rec.PublicID)
		require.NoError(t, err)
		require.Equal(t, map[string]any{"step": "two"}, found.Data)

		_, err = repo.UpdateData(ctx, paramsession.KindIframeSession, "does-not-exist", nil)
		require.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("concurrent creates get distinct ids", func(t *testing.T) {
		repo := newRepo(t)
		const n = 20

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = make(map[int64]struct{}, n)
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, err := paramsession.New(paramsession.KindIframeSession, "user-1")
				if err == nil {
					err = repo.Create(ctx, rec)
				}
				require.NoError(t, err)
				mu.Lock()
				ids[rec.ID] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()
		require.Len(t, ids, n)
	})
}

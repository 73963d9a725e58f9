package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

func exerciseSubscribers(t *testing.T, repo port.SubscriberRepository) {
	ctx := context.Background()

	s, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, s)

	require.NoError(t, repo.Save(ctx, entity.NewSubscriber(42, base)))
	require.NoError(t, repo.Save(ctx, entity.NewSubscriber(-100, base)))

	s, err = repo.Get(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, entity.AlertRejects, s.Level)
	require.True(t, base.Equal(s.SubscribedAt))

	s.SetLevel(entity.AlertAll)
	require.NoError(t, repo.Save(ctx, s))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(-100), list[0].ChatID)
	require.Equal(t, entity.AlertAll, list[1].Level)

	require.NoError(t, repo.Delete(ctx, 42))
	require.NoError(t, repo.Delete(ctx, 7))
	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestMemorySubscriberRepository(t *testing.T) {
	exerciseSubscribers(t, NewMemorySubscriberRepository())
}

func TestSQLiteSubscriberRepository(t *testing.T) {
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "subscribers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	exerciseSubscribers(t, repo.Subscribers())
}

package database

import (
	"context"
	"testing"

	"github.com/example/chembot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserUpsertRefreshesProfile(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{TelegramID: 100, Username: "old", FirstName: "Sara"}
	require.NoError(t, repo.Upsert(ctx, u))
	firstID := u.ID

	u2 := &models.User{TelegramID: 100, Username: "new", FirstName: "Sara"}
	require.NoError(t, repo.Upsert(ctx, u2))
	assert.Equal(t, firstID, u2.ID)

	got, err := repo.GetByTelegramID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Username)
	assert.Equal(t, "@new", got.DisplayName())

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.Touch(ctx, 100))
	_, err = repo.GetByTelegramID(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBlockList(t *testing.T) {
	db := newTestDB(t)
	repo := NewBlockedUserRepository(db)
	ctx := context.Background()

	blocked, err := repo.IsBlocked(ctx, 42)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, repo.Block(ctx, 42, "spam", 1))
	require.NoError(t, repo.Block(ctx, 42, "flooding", 2))

	entry, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "flooding", entry.Reason)
	assert.EqualValues(t, 2, entry.BlockedBy)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	removed, err := repo.Unblock(ctx, 42)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Unblock(ctx, 42)
	require.NoError(t, err)
	assert.False(t, removed)
}

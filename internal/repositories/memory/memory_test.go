package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"
)

func TestConnectionCreateIsUniquePerPair(t *testing.T) {
	ctx := context.Background()
	repo := New().Store().Connections

	require.NoError(t, repo.Create(ctx, &models.Connection{RequesterID: "a", AddresseeID: "b", Status: models.ConnectionPending}))
	err := repo.Create(ctx, &models.Connection{RequesterID: "b", AddresseeID: "a", Status: models.ConnectionPending})
	assert.ErrorIs(t, err, repositories.ErrConnectionExists)

	got, err := repo.FindByPairKey(ctx, models.PairKey("b", "a"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.RequesterID)
}

func TestConnectionFindMissingReturnsNil(t *testing.T) {
	got, err := New().Store().Connections.FindByPairKey(context.Background(), "x:y")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestConnectionUpdateStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := New().Store().Connections
	require.NoError(t, repo.Create(ctx, &models.Connection{RequesterID: "a", AddresseeID: "b", Status: models.ConnectionPending}))
	key := models.PairKey("a", "b")
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c, changed, err := repo.UpdateStatus(ctx, key, []models.ConnectionStatus{models.ConnectionPending}, models.ConnectionAccepted, at)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.ConnectionAccepted, c.Status)
	require.NotNil(t, c.RespondedAt)

	c, changed, err = repo.UpdateStatus(ctx, key, []models.ConnectionStatus{models.ConnectionPending}, models.ConnectionDeclined, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.ConnectionAccepted, c.Status)
	assert.Equal(t, at, c.UpdatedAt)
}

func TestBlockIsIdempotentAndSymmetricOnRead(t *testing.T) {
	ctx := context.Background()
	repo := New().Store().Blocks

	added, err := repo.Block(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.Block(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, added)

	blocked, err := repo.IsBlockedEither(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, blocked)

	list, err := repo.ListBlocked(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	removed, err := repo.Unblock(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, removed)
	blocked, _ = repo.IsBlockedEither(ctx, "a", "b")
	assert.False(t, blocked)
}

func TestFailureIsReturnedEverywhere(t *testing.T) {
	db := New()
	boom := errors.New("db down")
	db.SetFailure(boom)
	store := db.Store()

	_, err := store.Messages.ListByConversation(context.Background(), "c")
	assert.ErrorIs(t, err, boom)
	_, err = store.Connections.FindByPairKey(context.Background(), "a:b")
	assert.ErrorIs(t, err, boom)
}

func TestUserEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := New().Store().Users
	require.NoError(t, repo.Create(ctx, &models.User{Username: "amina", Email: "amina@example.com"}))
	err := repo.Create(ctx, &models.User{Username: "other", Email: "AMINA@example.com"})
	assert.ErrorIs(t, err, repositories.ErrEmailExists)
}

func TestUserSearchPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := New().Store().Users
	for _, name := range []string{"amina", "bilal", "aminata", "me"} {
		require.NoError(t, repo.Create(ctx, &models.User{ID: name, Username: name, Email: name + "@example.com"}))
		time.Sleep(2 * time.Millisecond)
	}

	users, total, err := repo.Search(ctx, "", "me", 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, users, 2)
	assert.Equal(t, "aminata", users[0].ID)
	assert.Equal(t, "bilal", users[1].ID)

	users, _, err = repo.Search(ctx, "", "me", 2, 2)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "amina", users[0].ID)

	users, total, err = repo.Search(ctx, "AMIN", "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, users, 2)

	users, total, err = repo.Search(ctx, "", "", 10, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Empty(t, users)
}

func TestReportsAreListedByReporter(t *testing.T) {
	ctx := context.Background()
	repo := New().Store().Reports
	require.NoError(t, repo.Create(ctx, &models.Report{UserID: "a", ReportedUserID: "b", Category: "Other", Details: "x"}))
	require.NoError(t, repo.Create(ctx, &models.Report{UserID: "c", ReportedUserID: "b", Category: "Other", Details: "y"}))

	got, err := repo.ListByReporter(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "b", got[0].ReportedUserID)
}

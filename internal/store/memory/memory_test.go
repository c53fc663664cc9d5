package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"commentroom/internal/models"
	"commentroom/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uptr(v uint) *uint { return &v }

func TestCommentRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(100)

	root, err := repo.Create(ctx, store.CreateParams{PostID: 1, AuthorID: 10, Body: "hi"})
	require.NoError(t, err)
	reply, err := repo.Create(ctx, store.CreateParams{PostID: 1, AuthorID: 11, Body: "hello back", ParentID: &root.ID})
	require.NoError(t, err)

	list, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, root.ID, list[0].ID)
	assert.Equal(t, reply.ID, list[1].ID)
	require.NotNil(t, list[1].ParentID)
	assert.Equal(t, root.ID, *list[1].ParentID)
	assert.False(t, list[1].CreatedAt.Before(list[0].CreatedAt))
}

func TestCommentRepository_Validation(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(5)
	other, err := repo.Create(ctx, store.CreateParams{PostID: 2, AuthorID: 1, Body: "other"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  store.CreateParams
		wantNF  bool
		wantVal bool
	}{
		{"empty body", store.CreateParams{PostID: 1, Body: "   "}, false, true},
		{"too long", store.CreateParams{PostID: 1, Body: "toolong"}, false, true},
		{"missing parent", store.CreateParams{PostID: 1, Body: "ok", ParentID: uptr(999)}, true, false},
		{"parent on other post", store.CreateParams{PostID: 1, Body: "ok", ParentID: &other.ID}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(ctx, tt.params)
			require.Error(t, err)
			var verr *store.ValidationError
			assert.Equal(t, tt.wantVal, errors.As(err, &verr))
			assert.Equal(t, tt.wantNF, errors.Is(err, store.ErrNotFound))
		})
	}

	list, _ := repo.List(ctx, 1)
	assert.Empty(t, list, "failed creates must not persist anything")
}

func TestCommentRepository_DeletedParent(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(0)
	parent, _ := repo.Create(ctx, store.CreateParams{PostID: 1, Body: "parent"})
	require.NoError(t, repo.Delete(ctx, parent.ID))

	_, err := repo.Create(ctx, store.CreateParams{PostID: 1, Body: "reply", ParentID: &parent.ID})
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "parent_id", verr.Field)

	_, err = repo.Get(ctx, parent.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, parent.ID), store.ErrNotFound)

	list, _ := repo.List(ctx, 1)
	assert.Empty(t, list)
}

func TestCommentRepository_MonotonicTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(-time.Minute) // 时钟回拨
		return clock
	}
	a, _ := repo.Create(ctx, store.CreateParams{PostID: 1, Body: "a"})
	b, _ := repo.Create(ctx, store.CreateParams{PostID: 1, Body: "b"})
	assert.False(t, b.CreatedAt.Before(a.CreatedAt))
	assert.Greater(t, b.ID, a.ID)
}

func TestCommentRepository_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Create(ctx, store.CreateParams{PostID: 1, Body: "x"})
		}()
	}
	wg.Wait()
	list, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 50)
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i].ID, list[i-1].ID)
	}
}

func TestPostRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository()
	p := &models.Post{Slug: "hello", AccessLevel: models.AccessFree, Status: models.StatusPublished}
	repo.Put(p)
	assert.NotZero(t, p.ID)

	got, err := repo.BySlug(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	byID, err := repo.ByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", byID.Slug)

	_, err = repo.BySlug(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	u := &models.User{Username: "alice"}
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, models.RoleReader, u.Role)
	assert.ErrorIs(t, repo.Create(ctx, &models.User{Username: "alice"}), store.ErrDuplicate)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, repo.SetSubscription(ctx, u.ID, true, &exp))
	got, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.SubscriptionActive)
	require.NotNil(t, got.SubscriptionExpiresAt)
	assert.True(t, got.SubscriptionExpiresAt.Equal(exp))

	assert.ErrorIs(t, repo.SetSubscription(ctx, 999, true, nil), store.ErrNotFound)
	_, err = repo.ByUsername(ctx, "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

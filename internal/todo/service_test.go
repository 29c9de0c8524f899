package todo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yourusername/todo-web/internal/storage"
	"github.com/yourusername/todo-web/internal/user"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := storage.Open("sqlite://"+filepath.Join(t.TempDir(), "todos.db"), "silent")
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })
	require.NoError(t, storage.Migrate(db, &user.User{}, &Todo{}))
	return db
}

func createOwner(t *testing.T, db *gorm.DB, username string) uint {
	t.Helper()
	u := &user.User{Username: username, HashedPassword: "x", IsActive: true, Role: "user"}
	require.NoError(t, db.Create(u).Error)
	return u.ID
}

func TestCreateValidatesInput(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db))
	ownerID := createOwner(t, db, "alice")
	ctx := context.Background()

	created, err := svc.Create(ctx, ownerID, Input{Title: "  Buy milk ", Description: " 2L ", Priority: 3})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Equal(t, "2L", created.Description)
	assert.False(t, created.Complete)
	assert.Equal(t, ownerID, created.OwnerID)

	cases := []struct {
		name string
		in   Input
	}{
		{"empty title", Input{Title: " ", Priority: 1}},
		{"priority too low", Input{Title: "a", Priority: MinPriority - 1}},
		{"priority too high", Input{Title: "a", Priority: MaxPriority + 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, ownerID, tc.in)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "INVALID_INPUT", apiErr.Code)
		})
	}
}

func TestListIsScopedAndOrdered(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db))
	alice := createOwner(t, db, "alice")
	bob := createOwner(t, db, "bob")
	ctx := context.Background()

	low, err := svc.Create(ctx, alice, Input{Title: "low", Priority: 1})
	require.NoError(t, err)
	high, err := svc.Create(ctx, alice, Input{Title: "high", Priority: 5})
	require.NoError(t, err)
	done, err := svc.Create(ctx, alice, Input{Title: "done", Priority: 5})
	require.NoError(t, err)
	_, err = svc.ToggleComplete(ctx, done.ID, alice)
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, Input{Title: "bob's", Priority: 2})
	require.NoError(t, err)

	todos, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, todos, 3)
	assert.Equal(t, []uint{high.ID, low.ID, done.ID}, []uint{todos[0].ID, todos[1].ID, todos[2].ID})

	empty, err := svc.List(ctx, createOwner(t, db, "carol"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateAndToggle(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db))
	ownerID := createOwner(t, db, "alice")
	ctx := context.Background()

	item, err := svc.Create(ctx, ownerID, Input{Title: "draft", Priority: 1})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, item.ID, ownerID, Input{Title: "final", Description: "desc", Priority: 4})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)

	got, err := svc.Get(ctx, item.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.Equal(t, "desc", got.Description)
	assert.Equal(t, 4, got.Priority)
	assert.False(t, got.Complete)

	toggled, err := svc.ToggleComplete(ctx, item.ID, ownerID)
	require.NoError(t, err)
	assert.True(t, toggled.Complete)

	// 編集しても完了フラグは維持される
	_, err = svc.Update(ctx, item.ID, ownerID, Input{Title: "final", Priority: 4})
	require.NoError(t, err)
	got, err = svc.Get(ctx, item.ID, ownerID)
	require.NoError(t, err)
	assert.True(t, got.Complete)

	toggled, err = svc.ToggleComplete(ctx, item.ID, ownerID)
	require.NoError(t, err)
	assert.False(t, toggled.Complete)
}

func TestOtherOwnersCannotTouch(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db))
	alice := createOwner(t, db, "alice")
	mallory := createOwner(t, db, "mallory")
	ctx := context.Background()

	item, err := svc.Create(ctx, alice, Input{Title: "private", Priority: 2})
	require.NoError(t, err)

	_, err = svc.Get(ctx, item.ID, mallory)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, item.ID, mallory, Input{Title: "mine now", Priority: 2})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ToggleComplete(ctx, item.ID, mallory)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, item.ID, mallory), ErrNotFound)

	got, err := svc.Get(ctx, item.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Title)
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db))
	ownerID := createOwner(t, db, "alice")
	ctx := context.Background()

	item, err := svc.Create(ctx, ownerID, Input{Title: "bye", Priority: 1})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, item.ID, ownerID))
	_, err = svc.Get(ctx, item.ID, ownerID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, item.ID, ownerID), ErrNotFound)
}

func TestPurgeCompleted(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db))
	alice := createOwner(t, db, "alice")
	bob := createOwner(t, db, "bob")
	ctx := context.Background()

	for _, owner := range []uint{alice, alice, bob} {
		item, err := svc.Create(ctx, owner, Input{Title: "done", Priority: 1})
		require.NoError(t, err)
		_, err = svc.ToggleComplete(ctx, item.ID, owner)
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, alice, Input{Title: "open", Priority: 1})
	require.NoError(t, err)

	n, err := svc.CountCompleted(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	removed, err := svc.PurgeCompleted(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	remaining, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "open", remaining[0].Title)

	n, err = svc.CountCompleted(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

type noopScheduler struct{}

func (noopScheduler) SchedulePurge(context.Context, uint) (string, error) { return "job", nil }

func TestShouldPurgeAsync(t *testing.T) {
	assert.False(t, shouldPurgeAsync(500, HandlerOptions{AsyncThreshold: 10}))
	assert.False(t, shouldPurgeAsync(500, HandlerOptions{Scheduler: noopScheduler{}}))
	assert.False(t, shouldPurgeAsync(10, HandlerOptions{Scheduler: noopScheduler{}, AsyncThreshold: 10}))
	assert.True(t, shouldPurgeAsync(11, HandlerOptions{Scheduler: noopScheduler{}, AsyncThreshold: 10}))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError("INVALID_INPUT", "bad", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bad")
}
